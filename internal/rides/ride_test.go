package rides

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestRideDecodesMixedScalars(t *testing.T) {
	var ride Ride
	err := json.Unmarshal([]byte(`{
		"A/A": 17,
		"THE_DATE": "2026-03-01T00:00:00.000Z",
		"TIME": "09:30:00",
		"HOTEL NAME": "Blue Bay",
		"PAX": 3,
		"ADULT": 2.5,
		"CH/INF": null,
		"PRICE": "45",
		"DRIVER": "Nikos",
		"UNKNOWN": {"nested": true}
	}`), &ride)
	require.NoError(t, err)

	assert.Equal(t, ID("17"), ride.ID)
	assert.Equal(t, "Blue Bay", ride.HotelName)
	assert.Equal(t, "3", ride.Pax)
	assert.Equal(t, "2.5", ride.Adult)
	assert.Equal(t, "", ride.ChildInfant)
	assert.Equal(t, "Nikos", ride.Driver)
}

func TestRideEncodesNumericIDAndOmitsEmpty(t *testing.T) {
	body, err := json.Marshal(Ride{ID: "42", From: "Airport"})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"A/A":42`)
	assert.NotContains(t, string(body), "DRIVER")

	body, err = json.Marshal(Ride{ID: "42", From: "Airport"}.WithoutID())
	require.NoError(t, err)
	assert.NotContains(t, string(body), "A/A")
	assert.Contains(t, string(body), `"FROM":"Airport"`)
}

func TestNormalizedPayload(t *testing.T) {
	ride := Ride{Adult: " 2,5 ", Price: "12,50"}.Normalized()
	assert.Equal(t, "2.5", ride.Adult)
	assert.Equal(t, "12.50", ride.Price)
}

func TestGetAndSet(t *testing.T) {
	var ride Ride
	assert.True(t, ride.Set(KeyHotelName, "Sunset"))
	assert.True(t, ride.Set(KeyChildInfant, "1"))
	assert.False(t, ride.Set(KeyID, "9"))
	assert.False(t, ride.Set("NOPE", "x"))

	assert.Equal(t, "Sunset", ride.Get(KeyHotelName))
	assert.Equal(t, "1", ride.ChildInfant)
	assert.Equal(t, "", ride.Get(KeyID))

	field, ok := FieldByName("hotel_name")
	require.True(t, ok)
	assert.Equal(t, KeyHotelName, field.Key)

	for _, f := range FormFields() {
		assert.NotEqual(t, KeyDriver, f.Key)
	}
}

func TestValidDecimal(t *testing.T) {
	for _, ok := range []string{"", "1", "1.", "1,5", ".5", " 12 . 5 ", "007"} {
		assert.True(t, ValidDecimal(ok), ok)
	}
	for _, bad := range []string{"1.2.3", "1,2,3", "abc", "-1", "1e3", "1.,2"} {
		assert.False(t, ValidDecimal(bad), bad)
	}
}

func TestPickerValues(t *testing.T) {
	assert.Equal(t, "2026-03-01", DateInputValue("2026-03-01T22:00:00.000Z"))
	assert.Equal(t, "2026-03-01", DateInputValue("2026-03-01"))
	assert.Equal(t, "2026-03-01", DateInputValue("Sun, 01 Mar 2026 00:00:00 GMT"))
	assert.Equal(t, "someday", DateInputValue("someday"))
	assert.Equal(t, "", DateInputValue("  "))

	assert.Equal(t, "09:30", TimeInputValue("09:30:00"))
	assert.Equal(t, "late", TimeInputValue("late"))
	assert.Equal(t, "09:30", TimeInputValue("9:30"))
	assert.Equal(t, "2026-03-05", DateInputValue("2026-3-5"))
}

func TestPickerKeeps(t *testing.T) {
	assert.True(t, PickerKeeps(KeyDate, "2026-3-5"))
	assert.True(t, PickerKeeps(KeyTime, "9:30"))
	assert.False(t, PickerKeeps(KeyDate, "5 March"))
	assert.False(t, PickerKeeps(KeyTime, "930"))
	assert.True(t, PickerKeeps(KeyPrice, "anything"))
}

func TestEditOptions(t *testing.T) {
	known := []string{"Airport", "Port"}
	assert.Equal(t, known, EditOptions("", known))
	assert.Equal(t, known, EditOptions("Port", known))
	assert.Equal(t, []string{"Old Town", "Airport", "Port"}, EditOptions("Old Town", known))
	assert.Equal(t, known, EditOptions(" Port ", known))
	assert.Equal(t, []string{"Old Town", "Airport", "Port"}, EditOptions(" Old Town", known))
}

func TestPageTotal(t *testing.T) {
	rows := []Ride{{Price: "10"}, {Price: "2.5"}, {Price: ""}, {Price: "n/a"}}
	assert.InDelta(t, 12.5, PageTotal(rows), 0.0001)
	assert.Zero(t, PageTotal(nil))
}

func TestIndexOf(t *testing.T) {
	rows := []Ride{{ID: "1"}, {ID: "2"}}
	assert.Equal(t, 1, IndexOf(rows, "2"))
	assert.Equal(t, -1, IndexOf(rows, "3"))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []Ride{{ID: "5", Info: "say \"hi\"\nthen go", Price: "10"}}))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "\ufeff"))
	lines := strings.Split(strings.TrimPrefix(out, "\ufeff"), "\r\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], `"A/A","Date","Time","Type"`))
	assert.True(t, strings.HasSuffix(lines[0], `"Price","Driver"`))
	assert.Contains(t, lines[1], `"say ""hi"" then go"`)
	assert.True(t, strings.HasPrefix(lines[1], `"5",`))
	assert.Equal(t, "", lines[2])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, []Ride{{ID: "5", From: "Airport", Price: "12.5"}}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A/A", rows[0][0])
	assert.Equal(t, "Driver", rows[0][len(Columns)-1])
	assert.Equal(t, "5", rows[1][0])
	assert.Equal(t, "Airport", rows[1][4])
	assert.Equal(t, "12.5", rows[1][18])
}

func TestExportFilename(t *testing.T) {
	now := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "rides_report_2026-03-01_page_2.csv", ExportFilename(now, 2, "csv"))
	assert.Equal(t, "rides_report_2026-03-01_page_1.xlsx", ExportFilename(now, 1, ".xlsx"))
}
