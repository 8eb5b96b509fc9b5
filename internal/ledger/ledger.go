// Package ledger implementa o histórico de status append-only de uma entidade.
// Cada serviço mantém a sua própria série (tabela própria), nunca compartilhada.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry é um registro imutável de mudança de status
type Entry struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
	Location  string    `json:"location,omitempty"`
}

// NewEntry cria uma nova entrada de histórico
func NewEntry(status string, note string, at time.Time) Entry {
	return Entry{
		ID:        uuid.New().String(),
		Status:    status,
		Timestamp: at,
		Note:      note,
	}
}

// WithLocation devolve uma cópia da entrada com a localização preenchida
func (e Entry) WithLocation(location string) Entry {
	e.Location = location
	return e
}

// NewestFirst devolve uma cópia ordenada da mais nova para a mais antiga.
// Entradas com o mesmo timestamp ficam na ordem inversa de inserção.
func NewestFirst(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Ledger guarda séries em memória, uma por entidade
type Ledger struct {
	mu     sync.RWMutex
	series map[string][]Entry
}

// New cria um ledger vazio
func New() *Ledger {
	return &Ledger{series: make(map[string][]Entry)}
}

// Append adiciona uma entrada ao fim da série da entidade
func (l *Ledger) Append(entityID string, entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.series[entityID] = append(l.series[entityID], entry)
}

// Entries devolve a série da entidade, da mais nova para a mais antiga
func (l *Ledger) Entries(entityID string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return NewestFirst(l.series[entityID])
}

// Len devolve quantas entradas a entidade possui
func (l *Ledger) Len(entityID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.series[entityID])
}
