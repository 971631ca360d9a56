package validate

import (
	"fmt"
	"reflect"
	"testing"

	"canvas-batch/internal/csvio"
)

func makeRecords(n int, header string) []csvio.Record {
	records := make([]csvio.Record, n)
	for i := range records {
		records[i] = csvio.Record{header: fmt.Sprintf("value-%d", i)}
	}
	return records
}

// TestValidateHeaders verifies required-header detection including the nil case.
func TestValidateHeaders(t *testing.T) {
	sv := NewSchemaValidator([]string{"LOGIN_ID", "ROLE"}, 0)
	expectedMsg := `The headers are invalid. The first line must include the following headers: "LOGIN_ID", "ROLE"`

	testCases := []struct {
		name       string
		headers    []string
		expectFail bool
	}{
		{name: "All required present", headers: []string{"LOGIN_ID", "ROLE"}, expectFail: false},
		{name: "Extra headers allowed", headers: []string{"LOGIN_ID", "ROLE", "NOTES"}, expectFail: false},
		{name: "Missing one required", headers: []string{"LOGIN_ID"}, expectFail: true},
		{name: "Nil headers fail", headers: nil, expectFail: true},
		{name: "Case mismatch fails", headers: []string{"login_id", "role"}, expectFail: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inv := sv.ValidateHeaders(tc.headers)
			if !tc.expectFail {
				if inv != nil {
					t.Errorf("Expected pass, got: %q", inv.Message)
				}
				return
			}
			if inv == nil {
				t.Fatalf("Expected failure, got nil")
			}
			if inv.Message != expectedMsg {
				t.Errorf("Message mismatch:\n got: %q\nwant: %q", inv.Message, expectedMsg)
			}
		})
	}
}

// TestValidateLength verifies the empty-file and row-bound checks.
func TestValidateLength(t *testing.T) {
	sv := NewSchemaValidator([]string{"SECTION_NAME"}, 60)

	testCases := []struct {
		name        string
		rowCount    int
		expectedMsg string
	}{
		{name: "Within bound passes", rowCount: 60, expectedMsg: ""},
		{name: "Single row passes", rowCount: 1, expectedMsg: ""},
		{name: "Empty file fails", rowCount: 0, expectedMsg: "No data was found in the file."},
		{
			name:        "Over bound fails",
			rowCount:    61,
			expectedMsg: "The CSV file has too many records. The maximum number of non-header records allowed is 60.",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inv := sv.ValidateLength(makeRecords(tc.rowCount, "SECTION_NAME"))
			if tc.expectedMsg == "" {
				if inv != nil {
					t.Errorf("Expected pass, got: %q", inv.Message)
				}
				return
			}
			if inv == nil {
				t.Fatalf("Expected failure %q, got nil", tc.expectedMsg)
			}
			if inv.Message != tc.expectedMsg {
				t.Errorf("Message mismatch:\n got: %q\nwant: %q", inv.Message, tc.expectedMsg)
			}
		})
	}
}

// TestValidateLengthUnbounded verifies MaxRows == 0 disables the upper bound.
func TestValidateLengthUnbounded(t *testing.T) {
	sv := NewSchemaValidator([]string{"SIS Login ID"}, 0)
	if inv := sv.ValidateLength(makeRecords(5000, "SIS Login ID")); inv != nil {
		t.Errorf("Expected no bound with MaxRows=0, got: %q", inv.Message)
	}
}

// TestValidateAccumulates verifies that header and length defects are
// reported together in one pass.
func TestValidateAccumulates(t *testing.T) {
	sv := NewSchemaValidator([]string{"EMAIL"}, 10)
	got := sv.Validate(nil, nil)
	expected := []SchemaInvalidation{
		{
			Message:  `The headers are invalid. The first line must include the following headers: "EMAIL"`,
			Severity: SeverityError,
		},
		{Message: "No data was found in the file.", Severity: SeverityError},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Validate() =\n %#v\nwant\n %#v", got, expected)
	}
}

// TestCheckRecordShapes verifies the coarse missing-data invalidation.
func TestCheckRecordShapes(t *testing.T) {
	sv := NewSchemaValidator([]string{"LOGIN_ID", "ROLE"}, 0)

	t.Run("Complete records pass", func(t *testing.T) {
		records := []csvio.Record{
			{"LOGIN_ID": "a", "ROLE": "student"},
			{"LOGIN_ID": "b", "ROLE": ""},
		}
		if inv := sv.CheckRecordShapes(records); inv != nil {
			t.Errorf("Expected pass (empty value is still a present column), got: %q", inv.Message)
		}
	})

	t.Run("Absent column fails", func(t *testing.T) {
		records := []csvio.Record{
			{"LOGIN_ID": "a", "ROLE": "student"},
			{"LOGIN_ID": "b"},
		}
		inv := sv.CheckRecordShapes(records)
		if inv == nil {
			t.Fatalf("Expected failure, got nil")
		}
		if inv.Message != "Some of the required columns in the CSV are missing data." {
			t.Errorf("Unexpected message: %q", inv.Message)
		}
	})
}
