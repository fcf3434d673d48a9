package document

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"subject marker stripped", "V/v Phê duyệt kế hoạch", "Phê duyệt kế hoạch"},
		{"marker with extra spaces", "V/v   Triển khai công tác", "Triển khai công tác"},
		{"no marker unchanged", "Kế hoạch 2024", "Kế hoạch 2024"},
		{"marker mid-string unchanged", "Công văn V/v nghỉ lễ", "Công văn V/v nghỉ lễ"},
		{"empty", "", ""},
		{"marker only", "V/v", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanTitle(tt.title); got != tt.want {
				t.Errorf("CleanTitle(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestBuildSearchText(t *testing.T) {
	date := NewDate(2024, time.March, 15)
	got := BuildSearchText("Quyết định", "12/QĐ", date, "Phê duyệt kế hoạch")
	want := "Quyết định 12/QĐ năm 2024 về Phê duyệt kế hoạch"
	if got != want {
		t.Errorf("BuildSearchText = %q, want %q", got, want)
	}
}

func TestBuildSearchTextNilDate(t *testing.T) {
	got := BuildSearchText("Công văn", "45/CV", nil, "Thông báo nghỉ lễ")
	want := "Công văn 45/CV năm  về Thông báo nghỉ lễ"
	if got != want {
		t.Errorf("BuildSearchText = %q, want %q", got, want)
	}
}

func TestParseIssueDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *Date
	}{
		{"valid", "2024-03-15", NewDate(2024, time.March, 15)},
		{"empty", "", nil},
		{"garbage", "not-a-date", nil},
		{"wrong format", "15/03/2024", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseIssueDate(tt.input)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ParseIssueDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if got != nil && !got.Equal(tt.want.Time) {
				t.Errorf("ParseIssueDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSuggestionInputs(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		number string
		dtype  string
		want   []string
	}{
		{
			"all present",
			"Phê duyệt kế hoạch", "12/QĐ", "Quyết định",
			[]string{"Phê duyệt kế hoạch", "12/QĐ", "Quyết định", "Phê duyệt kế hoạch 12/QĐ"},
		},
		{
			"missing number drops pair",
			"Phê duyệt kế hoạch", "", "Quyết định",
			[]string{"Phê duyệt kế hoạch", "Quyết định"},
		},
		{
			"missing title drops pair",
			"", "12/QĐ", "Quyết định",
			[]string{"12/QĐ", "Quyết định"},
		},
		{
			"all empty",
			"", "", "",
			[]string{},
		},
		{
			"duplicates collapsed",
			"Quyết định", "12/QĐ", "Quyết định",
			[]string{"Quyết định", "12/QĐ", "Quyết định 12/QĐ"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestionInputs(tt.title, tt.number, tt.dtype)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SuggestionInputs = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	rec := Record{
		DocumentID: "doc-1",
		Status:     StatusCompleted,
		IssueDate:  NewDate(2024, time.March, 15),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Record
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.IssueDate == nil || !decoded.IssueDate.Equal(rec.IssueDate.Time) {
		t.Errorf("issue date round trip = %v, want %v", decoded.IssueDate, rec.IssueDate)
	}
}

func TestExtractedEventValidate(t *testing.T) {
	ok := ExtractedEvent{DocumentID: "doc-1", Title: "V/v Thông báo"}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid event rejected: %v", err)
	}
	bad := ExtractedEvent{Title: "no id"}
	if err := bad.Validate(); err == nil {
		t.Error("event without documentId accepted")
	}
}

func TestUploadedEventValidate(t *testing.T) {
	ok := UploadedEvent{DocumentID: "doc-1", FileURL: "https://bucket.s3.amazonaws.com/doc-1.pdf"}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid event rejected: %v", err)
	}
	if err := (UploadedEvent{FileURL: "x"}).Validate(); err == nil {
		t.Error("event without documentId accepted")
	}
	if err := (UploadedEvent{DocumentID: "doc-1"}).Validate(); err == nil {
		t.Error("event without fileUrl accepted")
	}
}
