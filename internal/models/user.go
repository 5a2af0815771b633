package models

import (
	"encoding/json"
)

// User is a single entry of users.json.
//
// Keys this type does not model are kept in Extra and written back
// unchanged, since maintenance scripts add their own fields to the document.
type User struct {
	Role                   Role   `json:"role,omitempty"`
	AppPassHash            string `json:"app_pass_hash,omitempty"`
	AppPassSalt            string `json:"app_pass_salt,omitempty"`
	LegacyAppPass          string `json:"app_pass,omitempty"`
	ReadymodeUser          string `json:"readymode_user,omitempty"`
	ReadymodePassEncrypted string `json:"readymode_pass_encrypted,omitempty"`
	LegacyReadymodePass    string `json:"readymode_pass,omitempty"`
	AssemblyAIKeyEncrypted string `json:"assemblyai_api_key_encrypted,omitempty"`
	DailyLimit             int    `json:"daily_limit"`
	CreatedBy              string `json:"created_by,omitempty"`
	CreatedDate            string `json:"created_date,omitempty"`
	LastModified           string `json:"last_modified,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// HasPasswordHash reports whether the record carries a PBKDF2 hash.
func (u *User) HasPasswordHash() bool {
	return u.AppPassHash != "" && u.AppPassSalt != ""
}

type userAlias User

var userKeys = []string{
	"role", "app_pass_hash", "app_pass_salt", "app_pass",
	"readymode_user", "readymode_pass_encrypted", "readymode_pass",
	"assemblyai_api_key_encrypted", "daily_limit",
	"created_by", "created_date", "last_modified",
}

func (u *User) UnmarshalJSON(b []byte) error {
	var a userAlias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for _, k := range userKeys {
		delete(raw, k)
	}
	if len(raw) > 0 {
		a.Extra = raw
	}

	*u = User(a)
	return nil
}

func (u User) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(userAlias(u))
	if err != nil || len(u.Extra) == 0 {
		return b, err
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range u.Extra {
		if _, known := m[k]; !known {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

// Users is the whole users.json document keyed by username.
type Users map[string]User
