// Package memstore é um armazenamento em memória com transações de escrita
// serializadas. Cada serviço usa um Store por entidade quando
// database.driver=memory (testes e execução local sem Postgres).
package memstore

import (
	"sync"

	"github.com/matheusmosca/order-fulfillment/internal/ledger"
)

// Store guarda linhas de um tipo T e o histórico de cada linha
type Store[T any] struct {
	writeMu sync.Mutex // serializa transações, equivalente ao FOR UPDATE
	dataMu  sync.RWMutex
	rows    map[string]T
	history *ledger.Ledger
	clone   func(T) T
}

// New cria um Store vazio. clone faz a cópia profunda de uma linha; nil
// significa que T já é copiado por valor.
func New[T any](clone func(T) T) *Store[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Store[T]{
		rows:    make(map[string]T),
		history: ledger.New(),
		clone:   clone,
	}
}

// Get lê uma linha fora de transação
func (s *Store[T]) Get(id string) (T, bool) {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()

	row, ok := s.rows[id]
	if !ok {
		var zero T
		return zero, false
	}
	return s.clone(row), true
}

// Find devolve cópias das linhas que satisfazem match
func (s *Store[T]) Find(match func(T) bool) []T {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()

	out := make([]T, 0)
	for _, row := range s.rows {
		if match(row) {
			out = append(out, s.clone(row))
		}
	}
	return out
}

// History devolve o histórico da linha, do mais novo para o mais antigo
func (s *Store[T]) History(id string) []ledger.Entry {
	return s.history.Entries(id)
}

// Begin abre uma transação de escrita. Bloqueia até a anterior terminar.
func (s *Store[T]) Begin() *Tx[T] {
	s.writeMu.Lock()
	return &Tx[T]{
		store:  s,
		staged: make(map[string]T),
	}
}

type pendingEntry struct {
	entityID string
	entry    ledger.Entry
}

// Tx acumula escritas até o Commit. Commit e Rollback podem ser chamados
// mais de uma vez; só o primeiro tem efeito.
type Tx[T any] struct {
	store   *Store[T]
	staged  map[string]T
	entries []pendingEntry
	done    sync.Once
}

// Get lê a linha vendo as escritas já feitas nesta transação
func (tx *Tx[T]) Get(id string) (T, bool) {
	if row, ok := tx.staged[id]; ok {
		return tx.store.clone(row), true
	}
	return tx.store.Get(id)
}

// Put grava (ou substitui) uma linha
func (tx *Tx[T]) Put(id string, row T) {
	tx.staged[id] = tx.store.clone(row)
}

// Append adiciona uma entrada ao histórico da linha
func (tx *Tx[T]) Append(id string, entry ledger.Entry) {
	tx.entries = append(tx.entries, pendingEntry{entityID: id, entry: entry})
}

// Commit aplica as escritas e libera o store
func (tx *Tx[T]) Commit() error {
	tx.done.Do(func() {
		s := tx.store
		s.dataMu.Lock()
		for id, row := range tx.staged {
			s.rows[id] = row
		}
		s.dataMu.Unlock()

		for _, p := range tx.entries {
			s.history.Append(p.entityID, p.entry)
		}
		s.writeMu.Unlock()
	})
	return nil
}

// Rollback descarta as escritas e libera o store
func (tx *Tx[T]) Rollback() error {
	tx.done.Do(func() {
		tx.staged = nil
		tx.entries = nil
		tx.store.writeMu.Unlock()
	})
	return nil
}
