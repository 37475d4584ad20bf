package auth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// localIdentity はローカルIDファイルの1エントリ。
type localIdentity struct {
	UID          string `yaml:"uid"`
	Email        string `yaml:"email"`
	PasswordHash string `yaml:"password_hash"`
}

type localIdentityFile struct {
	Identities []localIdentity `yaml:"identities"`
}

// LocalProvider はbcryptハッシュを保持するYAMLファイルでIDを管理する。
// 外部IdPを用意できない開発環境向け。
type LocalProvider struct {
	path string
	cost int

	mu         sync.RWMutex
	identities []localIdentity
}

// NewLocalProvider はLocalProviderを生成する。
// ファイルが存在しない場合は空の状態で開始し、最初のCreateIdentityで作成する。
func NewLocalProvider(path string) (*LocalProvider, error) {
	p := &LocalProvider{path: path, cost: bcrypt.DefaultCost}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read identities file: %w", err)
	}

	var f localIdentityFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse identities file %s: %w", path, err)
	}
	for i, ident := range f.Identities {
		if ident.UID == "" || ident.Email == "" || ident.PasswordHash == "" {
			return nil, fmt.Errorf("identities file %s: entry %d is incomplete", path, i)
		}
	}
	p.identities = f.Identities
	return p, nil
}

// Authenticate はbcryptハッシュでパスワードを検証する。
func (p *LocalProvider) Authenticate(_ context.Context, email, password string) (*Identity, error) {
	p.mu.RLock()
	ident, ok := p.find(email)
	p.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &Identity{UID: ident.UID, Email: ident.Email}, nil
}

// CreateIdentity はパスワードをハッシュ化してファイルに追記する。
func (p *LocalProvider) CreateIdentity(_ context.Context, email, password string) (*Identity, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.find(email); ok {
		return nil, ErrIdentityExists
	}

	ident := localIdentity{
		UID:          uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
	}
	next := append(append([]localIdentity(nil), p.identities...), ident)
	if err := p.save(next); err != nil {
		return nil, err
	}
	p.identities = next

	return &Identity{UID: ident.UID, Email: ident.Email}, nil
}

// FindIdentityByEmail はメールアドレスでIDを検索する。
func (p *LocalProvider) FindIdentityByEmail(_ context.Context, email string) (*Identity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ident, ok := p.find(email)
	if !ok {
		return nil, nil
	}
	return &Identity{UID: ident.UID, Email: ident.Email}, nil
}

// find は呼び出し側でロックを保持している前提。
func (p *LocalProvider) find(email string) (localIdentity, bool) {
	email = strings.TrimSpace(email)
	for _, ident := range p.identities {
		if strings.EqualFold(ident.Email, email) {
			return ident, true
		}
	}
	return localIdentity{}, false
}

// save は一時ファイルに書き込んでからリネームする。
func (p *LocalProvider) save(identities []localIdentity) error {
	data, err := yaml.Marshal(localIdentityFile{Identities: identities})
	if err != nil {
		return fmt.Errorf("failed to encode identities: %w", err)
	}

	dir := filepath.Dir(p.path)
	tmp, err := os.CreateTemp(dir, ".identities-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write identities: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to chmod identities file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("failed to replace identities file: %w", err)
	}
	return nil
}

// compile-time interface check
var _ IdentityProvider = (*LocalProvider)(nil)
