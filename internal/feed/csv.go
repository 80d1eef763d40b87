package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/amishk599/boardfeed/internal/model"
)

// CSVHeader is the column order of the intermediate file.
var CSVHeader = []string{
	"job_id",
	"title",
	"location",
	"employment_type",
	"posted_label",
	"detail_link",
	"description_raw",
}

// WriteCSV writes one row per job, in order, with the raw description.
func WriteCSV(w io.Writer, jobs []model.EnrichedJob) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, j := range jobs {
		row := []string{
			j.JobID,
			j.Title,
			j.Location,
			j.EmploymentType,
			j.PostedLabel,
			j.DetailLink,
			j.DescriptionRaw,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", j.JobID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ErrMissingColumn means a CSV intermediate lacks a required column.
var ErrMissingColumn = errors.New("missing csv column")

// ReadCSV reads an intermediate file back. Columns are matched by header
// name, so their order may differ; extra columns are ignored.
func ReadCSV(r io.Reader) ([]model.EnrichedJob, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = trimBOM(name)
		}
		index[name] = i
	}
	for _, name := range CSVHeader {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	var jobs []model.EnrichedJob
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		get := func(name string) string {
			if i := index[name]; i < len(row) {
				return row[i]
			}
			return ""
		}
		jobs = append(jobs, model.EnrichedJob{
			JobStub: model.JobStub{
				JobID:          get("job_id"),
				Title:          get("title"),
				Location:       get("location"),
				EmploymentType: get("employment_type"),
				PostedLabel:    get("posted_label"),
				DetailLink:     get("detail_link"),
			},
			Position:       len(jobs),
			DescriptionRaw: get("description_raw"),
		})
	}
	return jobs, nil
}

func trimBOM(s string) string {
	const bom = "\ufeff"
	if len(s) >= len(bom) && s[:len(bom)] == bom {
		return s[len(bom):]
	}
	return s
}
