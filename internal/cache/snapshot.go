package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/contactsbook/apiserver/types"
)

const snapshotVersion = 1

// snapshot is the cached form of a user. It deliberately omits the password
// hash and the refresh token.
type snapshot struct {
	Version   int       `json:"v"`
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Serialize encodes the fields of user needed to authorize a request.
func Serialize(user types.User) ([]byte, error) {
	return json.Marshal(snapshot{
		Version:   snapshotVersion,
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Avatar:    user.Avatar,
		Confirmed: user.Confirmed,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	})
}

// Deserialize decodes a value produced by Serialize.
func Deserialize(data []byte) (types.User, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return types.User{}, err
	}
	if s.Version != snapshotVersion {
		return types.User{}, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	return types.User{
		ID:        s.ID,
		Username:  s.Username,
		Email:     s.Email,
		Avatar:    s.Avatar,
		Confirmed: s.Confirmed,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}, nil
}
