// Package advisor runs the recommendation pipeline for a user and month:
// transactions are normalized into spend history, forecast, matched against
// the stored cashback catalog and reconciled into per-row decisions.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"cashback-advisor/internal/attribution"
	"cashback-advisor/internal/domain"
	"cashback-advisor/internal/forecast"
	"cashback-advisor/internal/ingest"
	"cashback-advisor/internal/metrics"
	"cashback-advisor/internal/optimizer"
	"cashback-advisor/internal/reconcile"
	"cashback-advisor/internal/storage"
	"cashback-advisor/internal/validator"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoCatalog        = fmt.Errorf("no cashback catalog for month: %w", domain.ErrNotFound)
	ErrNoRecommendation = fmt.Errorf("no recommendation for month: %w", domain.ErrNotFound)
	ErrNothingToConfirm = errors.New("nothing to confirm")
)

type Store interface {
	storage.CashbackStorage
	storage.RecommendationStorage
	storage.ConfirmationStorage
}

type Options struct {
	Forecast  forecast.Options
	Optimizer optimizer.Options
	// Parallel solves banks concurrently; the result is identical to the
	// sequential run.
	Parallel bool
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

type Service struct {
	store      Store
	normalizer *ingest.Normalizer
	forecaster *forecast.Forecaster
	optimizer  *optimizer.Optimizer
	attributor *attribution.Attributor
	metrics    *metrics.Metrics
	logger     *slog.Logger
	parallel   bool

	now   func() time.Time
	newID func() string
}

func New(store Store, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Forecast.Logger == nil {
		opts.Forecast.Logger = logger
	}
	if opts.Optimizer.Logger == nil {
		opts.Optimizer.Logger = logger
	}
	if opts.Optimizer.Metrics == nil {
		opts.Optimizer.Metrics = opts.Metrics
	}
	return &Service{
		store:      store,
		normalizer: ingest.NewNormalizer(nil, nil, logger),
		forecaster: forecast.New(opts.Forecast),
		optimizer:  optimizer.New(opts.Optimizer),
		attributor: attribution.New(logger),
		metrics:    opts.Metrics,
		logger:     logger,
		parallel:   opts.Parallel,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Forecast predicts the spend of month from the transactions booked before it.
func (s *Service) Forecast(month string, txs []domain.BankTransaction) (domain.Predictions, error) {
	target, err := domain.ParseMonth(month)
	if err != nil {
		return nil, err
	}
	return s.forecaster.Forecast(s.normalizer.Normalize(txs), target), nil
}

// Recommend computes and stores the recommendation for the user's catalog
// of month. A previous recommendation for the same month is replaced.
func (s *Service) Recommend(ctx context.Context, userID int64, month string, txs []domain.BankTransaction) (*domain.Recommendation, error) {
	predictions, err := s.Forecast(month, txs)
	if err != nil {
		return nil, err
	}

	cm, err := s.store.GetMonth(ctx, userID, month)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	offers := cm.Offers()
	if len(offers) == 0 {
		return nil, ErrNoCatalog
	}

	chosen, err := s.optimize(ctx, predictions, offers)
	if err != nil {
		return nil, err
	}

	rec := &domain.Recommendation{
		ID:          s.newID(),
		UserID:      userID,
		Month:       month,
		CreatedAt:   s.now().UTC(),
		Predictions: predictions.Sorted(),
		Decisions:   reconcile.Reconcile(chosen, reconcile.Rules(offers)),
	}
	if err := s.store.SaveRecommendation(ctx, rec); err != nil {
		return nil, fmt.Errorf("save recommendation: %w", err)
	}
	if s.metrics != nil {
		s.metrics.Recommendations.Inc()
	}

	s.logger.Info("recommendation computed",
		"user_id", userID,
		"month", month,
		"recommendation_id", rec.ID,
		"categories", len(rec.Predictions),
		"chosen", len(chosen),
	)
	return rec, nil
}

func (s *Service) optimize(ctx context.Context, predictions domain.Predictions, offers []domain.CashbackOffer) ([]domain.ChosenCashback, error) {
	if !s.parallel {
		return s.optimizer.Optimize(predictions, offers)
	}

	groups, err := optimizer.GroupByBank(offers)
	if err != nil {
		return nil, err
	}
	total := predictions.Total()

	// each bank writes only its own slot, so the order matches Optimize
	results := make([][]domain.ChosenCashback, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, bank := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.optimizer.OptimizeBank(predictions, total, bank)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.ChosenCashback
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// Latest returns the stored recommendation for month.
func (s *Service) Latest(ctx context.Context, userID int64, month string) (*domain.Recommendation, error) {
	rec, err := s.store.GetRecommendation(ctx, userID, month)
	if err != nil {
		return nil, fmt.Errorf("load recommendation: %w", err)
	}
	if rec == nil {
		return nil, ErrNoRecommendation
	}
	return rec, nil
}

// Confirm stores the choices the user activated for month. With no explicit
// choices the chosen rows of the latest recommendation are confirmed.
func (s *Service) Confirm(ctx context.Context, userID int64, month string, choices []domain.ConfirmedChoice) (*domain.Confirmation, error) {
	if _, err := domain.ParseMonth(month); err != nil {
		return nil, err
	}
	if len(choices) == 0 {
		rec, err := s.Latest(ctx, userID, month)
		if err != nil {
			return nil, err
		}
		choices = reconcile.Confirmable(rec.Decisions)
	}
	if len(choices) == 0 {
		return nil, ErrNothingToConfirm
	}
	for i, ch := range choices {
		if err := validator.Validate.Struct(ch); err != nil {
			return nil, fmt.Errorf("choice %d: %w", i, err)
		}
	}

	c := &domain.Confirmation{
		UserID:      userID,
		Month:       month,
		ConfirmedAt: s.now().UTC(),
		Choices:     choices,
	}
	if err := s.store.SaveConfirmation(ctx, c); err != nil {
		return nil, fmt.Errorf("save confirmation: %w", err)
	}
	s.logger.Info("choices confirmed", "user_id", userID, "month", month, "choices", len(choices))
	return c, nil
}

// Attribute checks the transactions booked in month against the confirmed
// choices of that month. Merchant categories are title-cased as in the
// forecast but there is no memo fallback. Without a confirmation every spend is reported as
// not covered.
func (s *Service) Attribute(ctx context.Context, userID int64, month string, txs []domain.BankTransaction) (map[string][]domain.TransactionVerdict, error) {
	start, err := domain.ParseMonth(month)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetConfirmation(ctx, userID, month)
	if err != nil {
		return nil, fmt.Errorf("load confirmation: %w", err)
	}
	var choices []domain.ConfirmedChoice
	if c != nil {
		choices = c.Choices
	} else {
		s.logger.Debug("no confirmation, attributing against nothing", "user_id", userID, "month", month)
	}

	inMonth := make([]domain.BankTransaction, 0, len(txs))
	for _, tx := range txs {
		if !domain.MonthStart(tx.BookedAt).Equal(start) {
			continue
		}
		// only the merchant category counts here; rows without one are skipped
		// by the attributor, never reclassified from the memo
		if strings.TrimSpace(tx.Category) != "" {
			tx.Category = ingest.TitleCase(tx.Category)
		}
		inMonth = append(inMonth, tx)
	}

	verdicts := s.attributor.Attribute(inMonth, domain.NewConfirmed(choices))
	if s.metrics != nil {
		for _, vs := range verdicts {
			for _, v := range vs {
				s.metrics.Attributions.WithLabelValues(strconv.FormatBool(v.IsOptimal)).Inc()
			}
		}
	}
	return verdicts, nil
}
