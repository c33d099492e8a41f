package rides

// Backend column keys.
const (
	KeyID          = "A/A"
	KeyDate        = "THE_DATE"
	KeyTime        = "TIME"
	KeyType        = "TYPE"
	KeyFrom        = "FROM"
	KeyTo          = "TO"
	KeyHotelName   = "HOTEL NAME"
	KeyArea        = "AREA"
	KeyFlyCode     = "FLY_CODE"
	KeyFlyCompany  = "FLY_COMPANY"
	KeyEmail       = "EMAIL"
	KeyName        = "THE_NAME"
	KeyPax         = "PAX"
	KeyAdult       = "ADULT"
	KeyChildInfant = "CH/INF"
	KeyInfo        = "INFO"
	KeyTourOper    = "TOUR_OPER"
	KeyVCode       = "VCode"
	KeyPrice       = "PRICE"
	KeyDriver      = "DRIVER"
)

// Field describes one editable text column. Name is the HTML form name,
// which avoids the spaces and slashes in the backend keys.
type Field struct {
	Key     string
	Label   string
	Name    string
	Decimal bool
	ptr     func(*Ride) *string
}

// Column is one column of the results table and of the exports.
type Column struct {
	Key   string
	Label string
}

// fieldTable is in entry-form order.
var fieldTable = []Field{
	{Key: KeyDate, Label: "Date", Name: "the_date", ptr: func(r *Ride) *string { return &r.Date }},
	{Key: KeyTime, Label: "Time", Name: "time", ptr: func(r *Ride) *string { return &r.Time }},
	{Key: KeyType, Label: "Type", Name: "type", ptr: func(r *Ride) *string { return &r.Type }},
	{Key: KeyFrom, Label: "From", Name: "from", ptr: func(r *Ride) *string { return &r.From }},
	{Key: KeyTo, Label: "To", Name: "to", ptr: func(r *Ride) *string { return &r.To }},
	{Key: KeyHotelName, Label: "Hotel Name", Name: "hotel_name", ptr: func(r *Ride) *string { return &r.HotelName }},
	{Key: KeyArea, Label: "Area", Name: "area", ptr: func(r *Ride) *string { return &r.Area }},
	{Key: KeyFlyCode, Label: "Fly Code", Name: "fly_code", ptr: func(r *Ride) *string { return &r.FlyCode }},
	{Key: KeyFlyCompany, Label: "Fly Company", Name: "fly_company", ptr: func(r *Ride) *string { return &r.FlyCompany }},
	{Key: KeyEmail, Label: "Email", Name: "email", ptr: func(r *Ride) *string { return &r.Email }},
	{Key: KeyName, Label: "Customer Name", Name: "the_name", ptr: func(r *Ride) *string { return &r.Name }},
	{Key: KeyPax, Label: "Pax", Name: "pax", ptr: func(r *Ride) *string { return &r.Pax }},
	{Key: KeyAdult, Label: "Adult", Name: "adult", Decimal: true, ptr: func(r *Ride) *string { return &r.Adult }},
	{Key: KeyChildInfant, Label: "Ch/Inf", Name: "ch_inf", ptr: func(r *Ride) *string { return &r.ChildInfant }},
	{Key: KeyInfo, Label: "Info", Name: "info", ptr: func(r *Ride) *string { return &r.Info }},
	{Key: KeyTourOper, Label: "Tour Operator", Name: "tour_oper", ptr: func(r *Ride) *string { return &r.TourOper }},
	{Key: KeyVCode, Label: "V Code", Name: "vcode", ptr: func(r *Ride) *string { return &r.VCode }},
	{Key: KeyPrice, Label: "Price", Name: "price", Decimal: true, ptr: func(r *Ride) *string { return &r.Price }},
	{Key: KeyDriver, Label: "Driver", Name: "driver", ptr: func(r *Ride) *string { return &r.Driver }},
}

// Columns is the fixed, ordered column list of the results table, the CSV
// export and the XLSX export.
var Columns = []Column{
	{KeyID, "A/A"},
	{KeyDate, "Date"},
	{KeyTime, "Time"},
	{KeyType, "Type"},
	{KeyFrom, "From"},
	{KeyTo, "To"},
	{KeyHotelName, "Hotel Name"},
	{KeyArea, "Area"},
	{KeyFlyCode, "Fly Code"},
	{KeyFlyCompany, "Fly Company"},
	{KeyName, "Customer Name"},
	{KeyEmail, "Email"},
	{KeyPax, "Pax"},
	{KeyAdult, "Adult"},
	{KeyChildInfant, "Ch/Inf"},
	{KeyInfo, "Info"},
	{KeyVCode, "V Code"},
	{KeyTourOper, "Tour Operator"},
	{KeyPrice, "Price"},
	{KeyDriver, "Driver"},
}

// FormFields returns the fields an operator fills in on the entry form, in
// display order. DRIVER is backend-assigned and excluded.
func FormFields() []Field {
	out := make([]Field, 0, len(fieldTable)-1)
	for _, f := range fieldTable {
		if f.Key == KeyDriver {
			continue
		}
		out = append(out, f)
	}
	return out
}

// FieldByKey looks a field up by backend key.
func FieldByKey(key string) (Field, bool) {
	for _, f := range fieldTable {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// FieldByName looks a field up by HTML form name.
func FieldByName(name string) (Field, bool) {
	for _, f := range fieldTable {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Get returns the value stored under a backend key. Unknown keys read as "".
func (r *Ride) Get(key string) string {
	if key == KeyID {
		return string(r.ID)
	}
	f, ok := FieldByKey(key)
	if !ok {
		return ""
	}
	return *f.ptr(r)
}

// Set stores value under a backend key. The identifier and unknown keys are
// rejected.
func (r *Ride) Set(key, value string) bool {
	f, ok := FieldByKey(key)
	if !ok {
		return false
	}
	*f.ptr(r) = value
	return true
}
