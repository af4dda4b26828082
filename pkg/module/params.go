package module

import (
	"encoding/json"
	"fmt"

	"github.com/systmms/tpmops/pkg/tpm"
)

// PasswordParams are the task arguments of the password module.
type PasswordParams struct {
	State        State    `json:"state" yaml:"state"`
	Name         string   `json:"name" yaml:"name"`
	ProjectName  string   `json:"project_name,omitempty" yaml:"project_name"`
	Tags         []string `json:"tags,omitempty" yaml:"tags"`
	AccessInfo   string   `json:"access_info,omitempty" yaml:"access_info"`
	Username     string   `json:"username,omitempty" yaml:"username"`
	Email        string   `json:"email,omitempty" yaml:"email"`
	Password     string   `json:"password,omitempty" yaml:"password"`
	ExpiryDate   string   `json:"expiry_date,omitempty" yaml:"expiry_date"`
	Notes        string   `json:"notes,omitempty" yaml:"notes"`
	CustomData1  string   `json:"custom_data1,omitempty" yaml:"custom_data1"`
	CustomData2  string   `json:"custom_data2,omitempty" yaml:"custom_data2"`
	CustomData3  string   `json:"custom_data3,omitempty" yaml:"custom_data3"`
	CustomData4  string   `json:"custom_data4,omitempty" yaml:"custom_data4"`
	CustomData5  string   `json:"custom_data5,omitempty" yaml:"custom_data5"`
	CustomData6  string   `json:"custom_data6,omitempty" yaml:"custom_data6"`
	CustomData7  string   `json:"custom_data7,omitempty" yaml:"custom_data7"`
	CustomData8  string   `json:"custom_data8,omitempty" yaml:"custom_data8"`
	CustomData9  string   `json:"custom_data9,omitempty" yaml:"custom_data9"`
	CustomData10 string   `json:"custom_data10,omitempty" yaml:"custom_data10"`
}

// Input converts the params to a client input.
func (p PasswordParams) Input() tpm.PasswordInput {
	return tpm.PasswordInput{
		ProjectName: p.ProjectName,
		Name:        p.Name,
		Tags:        p.Tags,
		AccessInfo:  p.AccessInfo,
		Username:    p.Username,
		Email:       p.Email,
		Password:    p.Password,
		ExpiryDate:  p.ExpiryDate,
		Notes:       p.Notes,
		CustomData: [tpm.CustomFieldCount]string{
			p.CustomData1, p.CustomData2, p.CustomData3, p.CustomData4, p.CustomData5,
			p.CustomData6, p.CustomData7, p.CustomData8, p.CustomData9, p.CustomData10,
		},
	}
}

// ProjectParams are the task arguments of the project module.
type ProjectParams struct {
	State    State    `json:"state" yaml:"state"`
	Name     string   `json:"name" yaml:"name"`
	ParentID int      `json:"parent_id,omitempty" yaml:"parent_id"`
	Tags     []string `json:"tags,omitempty" yaml:"tags"`
	Notes    string   `json:"notes,omitempty" yaml:"notes"`
}

// Input converts the params to a client input.
func (p ProjectParams) Input() tpm.ProjectInput {
	return tpm.ProjectInput{
		Name:     p.Name,
		ParentID: p.ParentID,
		Tags:     p.Tags,
		Notes:    p.Notes,
	}
}

// DecodeParams converts a validated argument document into params.
func DecodeParams(doc map[string]interface{}, into interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to decode params: %w", err)
	}
	return nil
}
