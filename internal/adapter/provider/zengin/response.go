package zengin

// entry is one bank or branch in the source-data JSON files, which map a
// code onto its entry.
type entry struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Kana string `json:"kana"`
	Hira string `json:"hira"`
	Roma string `json:"roma"`
}
