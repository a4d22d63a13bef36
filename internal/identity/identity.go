// Package identity отвечает за стабильный идентификатор клиента.
//
// Идентификатор выдаётся один раз на установку клиента и используется как
// единственный ключ владения заказами. Он приватен для клиента, поэтому
// хранится в локальном файле, а не в общем хранилище.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Provider выдаёт и сохраняет идентификатор клиента.
type Provider struct {
	path string

	mu sync.Mutex
	id string
}

// NewProvider создаёт провайдер идентификатора, сохраняемого в указанном файле.
func NewProvider(path string) *Provider {
	return &Provider{path: path}
}

// GetOrCreate возвращает сохранённый идентификатор клиента, а при его отсутствии
// генерирует новый, сохраняет и возвращает его. Повторные вызовы в рамках
// одной сессии возвращают одно и то же значение.
func (p *Provider) GetOrCreate() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.id != "" {
		return p.id, nil
	}

	data, err := os.ReadFile(p.path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			p.id = id
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read client id: %w", err)
	}

	id := newClientID()

	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create client id dir: %w", err)
		}
	}

	if err := os.WriteFile(p.path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write client id: %w", err)
	}

	p.id = id
	return id, nil
}

// newClientID генерирует идентификатор из метки времени и случайного суффикса,
// достаточного, чтобы избежать коллизий между клиентами.
func newClientID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("C%d%s", time.Now().UnixMilli(), suffix)
}
