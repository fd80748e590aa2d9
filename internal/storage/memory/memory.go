// Package memory is an in-process implementation of the storage interfaces.
// It backs the service when no database is configured and serves as the
// test double for handlers and the bot.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cashback-advisor/internal/domain"
	"cashback-advisor/internal/storage"
)

type monthKey struct {
	userID int64
	month  string
}

type Storage struct {
	mu sync.RWMutex

	banks         map[string]int
	categories    map[string]int
	months        map[monthKey]*domain.CashbackMonth
	recs          map[monthKey]*domain.Recommendation
	confirmations map[monthKey]*domain.Confirmation
}

var _ storage.Storage = (*Storage)(nil)

func NewStorage() *Storage {
	return &Storage{
		banks:         make(map[string]int),
		categories:    make(map[string]int),
		months:        make(map[monthKey]*domain.CashbackMonth),
		recs:          make(map[monthKey]*domain.Recommendation),
		confirmations: make(map[monthKey]*domain.Confirmation),
	}
}

// === BankStorage ===

func (s *Storage) CreateIfNotExists(_ context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bankID(name), nil
}

func (s *Storage) FindByName(_ context.Context, name string) (*domain.Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.banks[name]
	if !ok {
		return nil, nil
	}
	return &domain.Bank{ID: id, Name: name}, nil
}

func (s *Storage) bankID(name string) int {
	if id, ok := s.banks[name]; ok {
		return id
	}
	id := len(s.banks) + 1
	s.banks[name] = id
	return id
}

// === CategoryStorage ===

func (s *Storage) CreateCategoryIfNotExists(_ context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categoryID(name), nil
}

func (s *Storage) FindCategoryByName(_ context.Context, name string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.categories[name]
	if !ok {
		return nil, nil
	}
	return &domain.Category{ID: id, Name: name}, nil
}

func (s *Storage) categoryID(name string) int {
	if id, ok := s.categories[name]; ok {
		return id
	}
	id := len(s.categories) + 1
	s.categories[name] = id
	return id
}

// === CashbackStorage ===

func (s *Storage) SaveMonth(_ context.Context, userID int64, monthStr string, bankCategories []domain.BankWithCategories) error {
	if err := storage.ValidateBanks(bankCategories); err != nil {
		return err
	}
	if _, err := domain.ParseMonth(monthStr); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := &domain.CashbackMonth{Month: monthStr, UserID: userID}
	for _, bc := range bankCategories {
		m.Banks = append(m.Banks, s.withIDs(bc))
	}
	s.months[monthKey{userID, monthStr}] = m
	return nil
}

func (s *Storage) GetMonth(_ context.Context, userID int64, monthStr string) (*domain.CashbackMonth, error) {
	if _, err := domain.ParseMonth(monthStr); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.months[monthKey{userID, monthStr}]
	if !ok {
		return nil, nil
	}
	return copyMonth(m), nil
}

func (s *Storage) SearchByCategory(_ context.Context, userID int64, monthStr, categoryName string) ([]domain.Bank, error) {
	if _, err := domain.ParseMonth(monthStr); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.months[monthKey{userID, monthStr}]
	if !ok {
		return nil, nil
	}
	var banks []domain.Bank
	for _, bwc := range m.Banks {
		for _, cc := range bwc.Categories {
			if strings.EqualFold(cc.Category.Name, categoryName) {
				banks = append(banks, bwc.Bank)
				break
			}
		}
	}
	sort.Slice(banks, func(i, j int) bool { return banks[i].Name < banks[j].Name })
	return banks, nil
}

func (s *Storage) SearchByBank(_ context.Context, userID int64, monthStr, bankName string) ([]domain.Category, error) {
	if _, err := domain.ParseMonth(monthStr); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.months[monthKey{userID, monthStr}]
	if !ok {
		return nil, nil
	}
	seen := make(map[string]bool)
	var categories []domain.Category
	for _, bwc := range m.Banks {
		if !strings.EqualFold(bwc.Bank.Name, bankName) {
			continue
		}
		for _, cc := range bwc.Categories {
			if !seen[cc.Category.Name] {
				seen[cc.Category.Name] = true
				categories = append(categories, cc.Category)
			}
		}
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (s *Storage) UpdateBankCategories(_ context.Context, userID int64, monthStr, bankName string, newCategories []domain.CashbackCategory) error {
	if err := storage.ValidateCategories(bankName, newCategories); err != nil {
		return err
	}
	if _, err := domain.ParseMonth(monthStr); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.months[monthKey{userID, monthStr}]
	if !ok {
		return fmt.Errorf("bank %q not found in month %s: %w", bankName, monthStr, domain.ErrNotFound)
	}
	i := bankIndex(m, bankName)
	if i < 0 {
		return fmt.Errorf("bank %q not found in month %s: %w", bankName, monthStr, domain.ErrNotFound)
	}
	updated := m.Banks[i]
	updated.Categories = newCategories
	m.Banks[i] = s.withIDs(updated)
	return nil
}

func (s *Storage) PatchMonth(_ context.Context, userID int64, monthStr string, bankCategories []domain.BankWithCategories) error {
	if err := storage.ValidateBanks(bankCategories); err != nil {
		return err
	}
	if _, err := domain.ParseMonth(monthStr); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := monthKey{userID, monthStr}
	m, ok := s.months[key]
	if !ok {
		m = &domain.CashbackMonth{Month: monthStr, UserID: userID}
		s.months[key] = m
	}

	for _, bc := range bankCategories {
		bc = s.withIDs(bc)
		i := bankIndex(m, bc.Bank.Name)
		if i < 0 {
			m.Banks = append(m.Banks, bc)
			continue
		}
		existing := &m.Banks[i]
		existing.BankLimit = bc.BankLimit
		existing.MaxCategories = bc.MaxCategories
		for _, cc := range bc.Categories {
			replaced := false
			for j := range existing.Categories {
				if strings.EqualFold(existing.Categories[j].Category.Name, cc.Category.Name) {
					existing.Categories[j] = cc
					replaced = true
					break
				}
			}
			if !replaced {
				existing.Categories = append(existing.Categories, cc)
			}
		}
	}
	return nil
}

func (s *Storage) DeleteBankFromMonth(_ context.Context, userID int64, monthStr, bankName string) error {
	if _, err := domain.ParseMonth(monthStr); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.months[monthKey{userID, monthStr}]
	if !ok {
		return nil
	}
	if i := bankIndex(m, bankName); i >= 0 {
		m.Banks = append(m.Banks[:i], m.Banks[i+1:]...)
	}
	return nil
}

func (s *Storage) DeleteCategoryFromBank(_ context.Context, userID int64, monthStr, bankName, categoryName string) error {
	if _, err := domain.ParseMonth(monthStr); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	notFound := fmt.Errorf("category %q not found for bank %q in %s: %w", categoryName, bankName, monthStr, domain.ErrNotFound)
	m, ok := s.months[monthKey{userID, monthStr}]
	if !ok {
		return notFound
	}
	i := bankIndex(m, bankName)
	if i < 0 {
		return notFound
	}
	bank := &m.Banks[i]
	for j, cc := range bank.Categories {
		if strings.EqualFold(cc.Category.Name, categoryName) {
			bank.Categories = append(bank.Categories[:j], bank.Categories[j+1:]...)
			if len(bank.Categories) == 0 {
				m.Banks = append(m.Banks[:i], m.Banks[i+1:]...)
			}
			return nil
		}
	}
	return notFound
}

// === RecommendationStorage ===

func (s *Storage) SaveRecommendation(_ context.Context, rec *domain.Recommendation) error {
	if rec == nil {
		return fmt.Errorf("nil recommendation")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	cp.Predictions = append([]domain.CategoryPrediction(nil), rec.Predictions...)
	cp.Decisions = append([]domain.CashbackRuleDecision(nil), rec.Decisions...)
	s.recs[monthKey{rec.UserID, rec.Month}] = &cp
	return nil
}

func (s *Storage) GetRecommendation(_ context.Context, userID int64, monthStr string) (*domain.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[monthKey{userID, monthStr}]
	if !ok {
		return nil, nil
	}
	cp := *rec
	cp.Predictions = append([]domain.CategoryPrediction(nil), rec.Predictions...)
	cp.Decisions = append([]domain.CashbackRuleDecision(nil), rec.Decisions...)
	return &cp, nil
}

// === ConfirmationStorage ===

func (s *Storage) SaveConfirmation(_ context.Context, c *domain.Confirmation) error {
	if c == nil {
		return fmt.Errorf("nil confirmation")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	cp.Choices = append([]domain.ConfirmedChoice(nil), c.Choices...)
	s.confirmations[monthKey{c.UserID, c.Month}] = &cp
	return nil
}

func (s *Storage) GetConfirmation(_ context.Context, userID int64, monthStr string) (*domain.Confirmation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.confirmations[monthKey{userID, monthStr}]
	if !ok {
		return nil, nil
	}
	cp := *c
	cp.Choices = append([]domain.ConfirmedChoice(nil), c.Choices...)
	return &cp, nil
}

// withIDs assigns bank and category ids. Must be called with s.mu held.
func (s *Storage) withIDs(bc domain.BankWithCategories) domain.BankWithCategories {
	bc.Bank.ID = s.bankID(bc.Bank.Name)
	categories := make([]domain.CashbackCategory, len(bc.Categories))
	for i, cc := range bc.Categories {
		cc.Category.ID = s.categoryID(cc.Category.Name)
		categories[i] = cc
	}
	bc.Categories = categories
	return bc
}

func bankIndex(m *domain.CashbackMonth, name string) int {
	for i, bwc := range m.Banks {
		if strings.EqualFold(bwc.Bank.Name, strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

func copyMonth(m *domain.CashbackMonth) *domain.CashbackMonth {
	cp := &domain.CashbackMonth{Month: m.Month, UserID: m.UserID}
	cp.Banks = make([]domain.BankWithCategories, len(m.Banks))
	for i, bwc := range m.Banks {
		bwc.Categories = append([]domain.CashbackCategory(nil), bwc.Categories...)
		cp.Banks[i] = bwc
	}
	return cp
}
