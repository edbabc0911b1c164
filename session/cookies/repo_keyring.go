package cookies

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringRepo keeps the cookies in the OS keychain as a single JSON secret.
type KeyringRepo struct {
	service string
	account string
}

var _ Repo = (*KeyringRepo)(nil)

// NewKeyringRepo creates a keychain backed repo under service/account.
func NewKeyringRepo(service, account string) *KeyringRepo {
	return &KeyringRepo{service: service, account: account}
}

func (r *KeyringRepo) Load() ([]StoredCookie, error) {
	raw, err := keyring.Get(r.service, r.account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[KeyringRepo.Load] keyring.Get: %w", err)
	}

	var stored []StoredCookie
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("[KeyringRepo.Load] corrupt cookie payload: %w", err)
	}
	return stored, nil
}

func (r *KeyringRepo) Save(cookies []StoredCookie) error {
	if len(cookies) == 0 {
		return r.Delete()
	}
	raw, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("[KeyringRepo.Save] marshal: %w", err)
	}
	if err := keyring.Set(r.service, r.account, string(raw)); err != nil {
		return fmt.Errorf("[KeyringRepo.Save] keyring.Set: %w", err)
	}
	return nil
}

func (r *KeyringRepo) Delete() error {
	err := keyring.Delete(r.service, r.account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("[KeyringRepo.Delete] keyring.Delete: %w", err)
	}
	return nil
}
