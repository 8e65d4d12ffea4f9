package dto

type ContactRequest struct {
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Phone     string            `json:"phone" binding:"required"`
	Group     string            `json:"group"`
	Fields    map[string]string `json:"fields"`
}

// ImportContactsRequest carries rows already parsed from an uploaded file.
type ImportContactsRequest struct {
	Group    string           `json:"group"`
	Contacts []ContactRequest `json:"contacts" binding:"required,min=1"`
}

type ImportContactsResponse struct {
	Created  int     `json:"created"`
	Rejected any     `json:"rejected"`
	IDs      []int64 `json:"ids"`
}
