package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func reportEntries() []Entry {
	return []Entry{
		{ID: "1", Department: "Youth Ministry", Date: "2024-01-10"},
		{ID: "2", Department: "Finance", Date: "2024-01-31"},
		{ID: "3", Department: "Youth", Date: "2023-12-31"},
		{ID: "4", Department: "Finance", Date: "2024-01-10"},
		{ID: "5", Department: "Choir", Date: "2024-01-31 10:00:00"},
		{ID: "6", Department: "Finance", Date: "2024-02-01"},
		{ID: "7", Department: "ÉCOLE", Date: "2024-01-05"},
	}
}

func TestFilterReportDateRange(t *testing.T) {
	got := FilterReport(reportEntries(), ReportFilter{From: "2024-01-01", To: "2024-01-31"})
	// ties keep insertion order; the datetime on the To day sorts past To
	assert.Equal(t, []string{"2", "1", "4", "7"}, ids(got))
}

func TestFilterReportDepartment(t *testing.T) {
	cases := []struct {
		needle string
		want   []string
	}{
		{"youth", []string{"1", "3"}},
		{"YOUTH", []string{"1", "3"}},
		{"nance", []string{"6", "2", "4"}},
		{"école", []string{"7"}},
		{"none", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.needle, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(FilterReport(reportEntries(), ReportFilter{Department: tc.needle})))
		})
	}
}

func TestFilterReportNoFilter(t *testing.T) {
	got := FilterReport(reportEntries(), ReportFilter{})
	assert.Equal(t, []string{"6", "5", "2", "1", "4", "7", "3"}, ids(got))
}

func TestFilterReportDoesNotMutateInput(t *testing.T) {
	in := reportEntries()
	FilterReport(in, ReportFilter{})
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6", "7"}, ids(in))
}
