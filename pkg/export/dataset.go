package export

import "fmt"

// Column describes one exported field. Weight sets the relative PDF width; zero means 1.
type Column struct {
	Key    string
	Title  string
	Weight float64
}

// Dataset defines tabular export content.
type Dataset struct {
	Title   string
	Columns []Column
	Rows    []map[string]string
	// Summary lines are printed below the table in PDF output.
	Summary []string
}

func (d Dataset) validate(format string) error {
	if len(d.Columns) == 0 {
		return fmt.Errorf("%s requires at least one column", format)
	}
	return nil
}

func (d Dataset) titles() []string {
	titles := make([]string, len(d.Columns))
	for i, column := range d.Columns {
		titles[i] = column.Title
		if titles[i] == "" {
			titles[i] = column.Key
		}
	}
	return titles
}
