// Package feed writes the run outputs: the XML job feed, the CSV
// intermediate and the stub checkpoint.
package feed

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/amishk599/boardfeed/internal/model"
)

// Record is one job as it appears in the feed.
type Record struct {
	JobID       string `xml:"jobid"`
	Title       string `xml:"title"`
	Location    string `xml:"location"`
	TimeType    string `xml:"time_type"`
	PostedOn    string `xml:"posted_on"`
	JobLink     string `xml:"job_link"`
	Description string `xml:"description"`
}

// RecordFrom maps an enriched job to its feed record. With clean set the
// location and posted labels lose their listing-page decoration.
func RecordFrom(job model.EnrichedJob, clean bool) Record {
	r := Record{
		JobID:       job.JobID,
		Title:       job.Title,
		Location:    job.Location,
		TimeType:    job.EmploymentType,
		PostedOn:    job.PostedLabel,
		JobLink:     job.DetailLink,
		Description: job.DescriptionNormalized,
	}
	if clean {
		r.Location = CleanLocation(r.Location)
		r.PostedOn = CleanPostedLabel(r.PostedOn)
	}
	return r
}

// Records maps every job in order.
func Records(jobs []model.EnrichedJob, clean bool) []Record {
	out := make([]Record, len(jobs))
	for i, j := range jobs {
		out[i] = RecordFrom(j, clean)
	}
	return out
}

const prologue = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// WriteXML writes records as a jobs feed. Scalars are escaped; the
// description is always a CDATA section.
func WriteXML(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(prologue)
	bw.WriteString("<jobs>\n")
	for _, r := range records {
		bw.WriteString("  <job>\n")
		for _, f := range []struct{ name, value string }{
			{"jobid", r.JobID},
			{"title", r.Title},
			{"location", r.Location},
			{"time_type", r.TimeType},
			{"posted_on", r.PostedOn},
			{"job_link", r.JobLink},
		} {
			fmt.Fprintf(bw, "    <%s>", f.name)
			if err := xml.EscapeText(bw, []byte(validXML(f.value))); err != nil {
				return fmt.Errorf("escape %s of %s: %w", f.name, r.JobID, err)
			}
			fmt.Fprintf(bw, "</%s>\n", f.name)
		}
		bw.WriteString("    <description>")
		bw.WriteString(cdata(validXML(r.Description)))
		bw.WriteString("</description>\n")
		bw.WriteString("  </job>\n")
	}
	bw.WriteString("</jobs>\n")
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	return nil
}

// cdata wraps s in a CDATA section, splitting any "]]>" across two
// sections so the content cannot close the block early.
func cdata(s string) string {
	return "<![CDATA[" + strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>") + "]]>"
}

// validXML drops characters XML 1.0 cannot carry. Invalid UTF-8 bytes
// become U+FFFD first, since CDATA content is copied through unescaped.
func validXML(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	valid := func(r rune) bool {
		return r == '\t' || r == '\n' || r == '\r' ||
			(r >= 0x20 && r <= 0xD7FF) ||
			(r >= 0xE000 && r <= 0xFFFD) ||
			(r >= 0x10000 && r <= 0x10FFFF)
	}
	if strings.IndexFunc(s, func(r rune) bool { return !valid(r) }) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if valid(r) {
			return r
		}
		return -1
	}, s)
}
