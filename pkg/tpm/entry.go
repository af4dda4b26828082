package tpm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// CustomFieldCount is the number of custom fields a password can carry.
const CustomFieldCount = 10

// ExpiryStatus is the server's view of a password's expiry date.
type ExpiryStatus int

const (
	ExpiryNone     ExpiryStatus = 0 // no date or not expired
	ExpiryToday    ExpiryStatus = 1
	ExpiryExpired  ExpiryStatus = 2
	ExpiryUpcoming ExpiryStatus = 3
)

func (s ExpiryStatus) String() string {
	switch s {
	case ExpiryNone:
		return "none"
	case ExpiryToday:
		return "expires-today"
	case ExpiryExpired:
		return "expired"
	case ExpiryUpcoming:
		return "expires-soon"
	}
	return fmt.Sprintf("ExpiryStatus(%d)", int(s))
}

// ProjectRef is the project summary embedded in a password.
type ProjectRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CustomField is one of the user-defined password attributes.
type CustomField struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Password is a password entry. Entries decoded from the server keep the
// original document; MarshalJSON and Field read from it, so treat decoded
// entries as read-only snapshots.
type Password struct {
	ID           int          `json:"id"`
	Name         string       `json:"name"`
	Project      ProjectRef   `json:"project"`
	Tags         string       `json:"tags"`
	AccessInfo   string       `json:"access_info"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	Password     string       `json:"password"`
	ExpiryDate   string       `json:"expiry_date"`
	ExpiryStatus ExpiryStatus `json:"expiry_status"`
	Notes        string       `json:"notes"`
	Archived     bool         `json:"archived"`
	Locked       bool         `json:"locked"`
	CreatedOn    string       `json:"created_on"`
	UpdatedOn    string       `json:"updated_on"`

	// CustomFields[i] is custom_field{i+1}; nil when unset.
	CustomFields [CustomFieldCount]*CustomField `json:"-"`

	raw json.RawMessage
}

// EntryID implements the lookup entry contract.
func (p Password) EntryID() int { return p.ID }

// EntryName implements the lookup entry contract.
func (p Password) EntryName() string { return p.Name }

// CustomData returns the data of custom field n (1-based), or "".
func (p Password) CustomData(n int) string {
	if n < 1 || n > CustomFieldCount || p.CustomFields[n-1] == nil {
		return ""
	}
	return p.CustomFields[n-1].Data
}

// TagList splits the comma-joined tags.
func (p Password) TagList() []string { return SplitTags(p.Tags) }

func (p *Password) UnmarshalJSON(data []byte) error {
	type plain Password
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for i := range v.CustomFields {
		raw, ok := fields[customFieldKey(i+1)]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		var cf CustomField
		if err := json.Unmarshal(raw, &cf); err != nil {
			return fmt.Errorf("%s: %w", customFieldKey(i+1), err)
		}
		v.CustomFields[i] = &cf
	}

	v.raw = append(json.RawMessage(nil), data...)
	*p = Password(v)
	return nil
}

func (p Password) MarshalJSON() ([]byte, error) {
	if len(p.raw) > 0 {
		return p.raw, nil
	}

	type plain Password
	doc, err := toMap(plain(p))
	if err != nil {
		return nil, err
	}
	for i, cf := range p.CustomFields {
		if cf != nil {
			doc[customFieldKey(i+1)] = cf
		}
	}
	return json.Marshal(doc)
}

// Field returns the value of a top-level key of the entry document.
func (p Password) Field(name string) (interface{}, bool) {
	return documentField(p, name)
}

func customFieldKey(n int) string { return fmt.Sprintf("custom_field%d", n) }

// Project is a project entry; same snapshot semantics as Password.
type Project struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ParentID  int    `json:"parent_id"`
	Tags      string `json:"tags"`
	Notes     string `json:"notes"`
	Archived  bool   `json:"archived"`
	CreatedOn string `json:"created_on"`
	UpdatedOn string `json:"updated_on"`

	raw json.RawMessage
}

func (p Project) EntryID() int      { return p.ID }
func (p Project) EntryName() string { return p.Name }
func (p Project) TagList() []string { return SplitTags(p.Tags) }

func (p *Project) UnmarshalJSON(data []byte) error {
	type plain Project
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	v.raw = append(json.RawMessage(nil), data...)
	*p = Project(v)
	return nil
}

func (p Project) MarshalJSON() ([]byte, error) {
	if len(p.raw) > 0 {
		return p.raw, nil
	}
	type plain Project
	return json.Marshal(plain(p))
}

// Field returns the value of a top-level key of the entry document.
func (p Project) Field(name string) (interface{}, bool) {
	return documentField(p, name)
}

// GeneratedPassword is the response of the generate endpoint.
type GeneratedPassword struct {
	Password string `json:"password"`
}

// SplitTags splits a comma-joined tag string, dropping empty items.
func SplitTags(tags string) []string {
	var out []string
	for _, t := range strings.Split(tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// JoinTags joins tag lists into the comma-joined wire form. Duplicates and
// empty tags are dropped; first occurrence wins the position.
func JoinTags(lists ...[]string) string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, t := range list {
			t = strings.TrimSpace(t)
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return strings.Join(out, ",")
}

func documentField(v json.Marshaler, name string) (interface{}, bool) {
	data, err := v.MarshalJSON()
	if err != nil {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, false
	}
	value, ok := doc[name]
	return value, ok
}

func toMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
