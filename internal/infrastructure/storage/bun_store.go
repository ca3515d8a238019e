package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/smilemakc/cil/internal/domain"
	domerrors "github.com/smilemakc/cil/internal/domain/errors"
)

// BunStore is the Postgres-backed StrandStore, built on bun
// the way the reference workflow store was: a single jsonb-heavy table, a
// thin model with ToDomain/FromDomain converters, and RunInTx around each
// locked read-modify-write of a single row.
type BunStore struct {
	db *bun.DB
}

// NewBunStore opens a pgdriver connection pool and wraps it in a bun.DB.
func NewBunStore(dsn string) *BunStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &BunStore{db: db}
}

// InitSchema creates the strands table and its secondary indices if absent:
// indices on (kind, created_at), (kind, symbol, timeframe), a GIN index on
// cluster_key, and a tag index.
func (s *BunStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*StrandModel)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS strands_kind_created_at_idx ON strands (kind, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS strands_kind_symbol_timeframe_idx ON strands (kind, symbol, timeframe)`,
		`CREATE INDEX IF NOT EXISTS strands_cluster_key_gin_idx ON strands USING GIN (cluster_key)`,
		`CREATE INDEX IF NOT EXISTS strands_tags_gin_idx ON strands USING GIN (tags)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// StrandModel is the bun row model for a strand. content/cluster_key/tags
// are stored as jsonb; consumers must tolerate unknown keys within them.
type StrandModel struct {
	bun.BaseModel `bun:"table:strands,alias:s"`

	ID uuid.UUID `bun:"id,pk,type:uuid"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
	Kind string `bun:"kind,notnull"`
	BraidLevel int `bun:"braid_level,notnull"`
	Symbol string `bun:"symbol"`
	Timeframe string `bun:"timeframe"`
	SessionBucket string `bun:"session_bucket"`
	Regime string `bun:"regime"`
	Content map[string]any `bun:"content,type:jsonb"`
	Tags []string `bun:"tags,type:jsonb"`
	ClusterKey []domain.ClusterSlot `bun:"cluster_key,type:jsonb"`
	Lesson string `bun:"lesson"`
	Lineage domain.Lineage `bun:"lineage,type:jsonb"`
	ResonanceState domain.ResonanceState `bun:"resonance_state,type:jsonb"`
	Telemetry domain.Telemetry `bun:"telemetry,type:jsonb"`
	Scores domain.Scores `bun:"scores,type:jsonb"`
	TrackingStatus string `bun:"tracking_status"`
	FeatureVersion int `bun:"feature_version,notnull,default:1"`
}

func fromDomain(st *domain.Strand) *StrandModel {
	return &StrandModel{
		ID: st.ID(),
		CreatedAt: st.CreatedAt(),
		UpdatedAt: st.UpdatedAt(),
		Kind: st.Kind().String(),
		BraidLevel: st.BraidLevel(),
		Symbol: st.Symbol(),
		Timeframe: st.Timeframe(),
		SessionBucket: st.SessionBucket(),
		Regime: st.Regime(),
		Content: map[string]any(st.Content()),
		Tags: st.Tags(),
		ClusterKey: st.ClusterKey(),
		Lesson: st.Lesson(),
		Lineage: st.Lineage(),
		ResonanceState: st.ResonanceState(),
		Telemetry: st.Telemetry(),
		Scores: st.Scores(),
		TrackingStatus: st.TrackingStatus().String(),
		FeatureVersion: st.FeatureVersion(),
	}
}

func (m *StrandModel) toDomain() *domain.Strand {
	return domain.Reconstruct(m.ID, m.CreatedAt, m.UpdatedAt, domain.Params{
			Kind: domain.Kind(m.Kind),
			BraidLevel: m.BraidLevel,
			Symbol: m.Symbol,
			Timeframe: m.Timeframe,
			SessionBucket: m.SessionBucket,
			Regime: m.Regime,
			Content: domain.Content(m.Content),
			Tags: m.Tags,
			ClusterKey: domain.ClusterSlots(m.ClusterKey),
			Lesson: m.Lesson,
			Lineage: m.Lineage,
			ResonanceState: m.ResonanceState,
			Telemetry: m.Telemetry,
			Scores: m.Scores,
			TrackingStatus: domain.TrackingStatus(m.TrackingStatus),
			FeatureVersion: m.FeatureVersion,
	})
}

func (s *BunStore) Append(ctx context.Context, st *domain.Strand) (uuid.UUID, error) {
	model := fromDomain(st)
	_, err := s.db.NewInsert().Model(model).Exec(ctx)
	if err != nil {
		return uuid.Nil, domerrors.Wrap(domerrors.CodeStoreUnavailable, "append strand", err)
	}
	return st.ID(), nil
}

func (s *BunStore) Get(ctx context.Context, id uuid.UUID) (*domain.Strand, error) {
	model := new(StrandModel)
	err := s.db.NewSelect().Model(model).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domerrors.Newf(domerrors.CodeNotFound, "strand %s not found", id)
		}
		return nil, domerrors.Wrap(domerrors.CodeStoreUnavailable, "get strand", err)
	}
	return model.toDomain(), nil
}

func (s *BunStore) Query(ctx context.Context, filter domain.QueryFilter) ([]*domain.Strand, error) {
	q := s.db.NewSelect().Model((*StrandModel)(nil))
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind.String())
	}
	if filter.Symbol != "" {
		q = q.Where("symbol = ?", filter.Symbol)
	}
	if filter.Timeframe != "" {
		q = q.Where("timeframe = ?", filter.Timeframe)
	}
	if filter.BraidLevel != 0 {
		q = q.Where("braid_level = ?", filter.BraidLevel)
	}
	if !filter.CreatedAfter.IsZero() {
		q = q.Where("created_at >= ?", filter.CreatedAfter)
	}
	if !filter.CreatedBefore.IsZero() {
		q = q.Where("created_at <= ?", filter.CreatedBefore)
	}
	if filter.ClusterType != "" {
		// @> containment on the jsonb array; matches any slot carrying this
		// cluster_type (and cluster_key/braid_level/consumed when given).
		probe := map[string]any{"cluster_type": filter.ClusterType.String()}
		if filter.ClusterKey != "" {
			probe["cluster_key"] = filter.ClusterKey
		}
		if filter.UnconsumedAt != nil {
			probe["braid_level"] = *filter.UnconsumedAt
			probe["consumed"] = false
		}
		q = q.Where("cluster_key @> ?::jsonb", []map[string]any{probe})
	}
	q = q.OrderExpr("created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var models []*StrandModel
	if err := q.Scan(ctx, &models); err != nil {
		return nil, domerrors.Wrap(domerrors.CodeStoreUnavailable, "query strands", err)
	}

	out := make([]*domain.Strand, 0, len(models))
	for _, m := range models {
		st := m.toDomain()
		if len(filter.Tags) > 0 {
			ok := true
			for _, tag := range filter.Tags {
				if !tagContains(st.Tags(), tag) {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *BunStore) UpdateConsumed(ctx context.Context, id uuid.UUID, key domain.ClusterSlotKey) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			model := new(StrandModel)
			if err := tx.NewSelect().Model(model).Where("id = ?", id).For("UPDATE").Scan(ctx); err != nil {
				if err == sql.ErrNoRows {
					return domerrors.Newf(domerrors.CodeNotFound, "strand %s not found", id)
				}
				return domerrors.Wrap(domerrors.CodeStoreUnavailable, "lock strand for consumption flip", err)
			}
			st := model.toDomain()
			if err := st.ConsumeSlot(key, time.Now().UTC()); err != nil {
				return err
			}
			_, err := tx.NewUpdate().Model(fromDomain(st)).
			Column("cluster_key", "updated_at").
			Where("id = ?", id).
			Exec(ctx)
			if err != nil {
				return domerrors.Wrap(domerrors.CodeStoreUnavailable, "persist consumption flip", err)
			}
			return nil
	})
}

func (s *BunStore) AddClusterSlot(ctx context.Context, id uuid.UUID, slot domain.ClusterSlot) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			model := new(StrandModel)
			if err := tx.NewSelect().Model(model).Where("id = ?", id).For("UPDATE").Scan(ctx); err != nil {
				if err == sql.ErrNoRows {
					return domerrors.Newf(domerrors.CodeNotFound, "strand %s not found", id)
				}
				return domerrors.Wrap(domerrors.CodeStoreUnavailable, "lock strand for cluster slot append", err)
			}
			st := model.toDomain()
			st.AddClusterSlot(slot, time.Now().UTC())
			_, err := tx.NewUpdate().Model(fromDomain(st)).
			Column("cluster_key", "updated_at").
			Where("id = ?", id).
			Exec(ctx)
			if err != nil {
				return domerrors.Wrap(domerrors.CodeStoreUnavailable, "persist cluster slot append", err)
			}
			return nil
	})
}

func (s *BunStore) UpdateMutableFields(ctx context.Context, id uuid.UUID, patch domain.MutablePatch) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			model := new(StrandModel)
			if err := tx.NewSelect().Model(model).Where("id = ?", id).For("UPDATE").Scan(ctx); err != nil {
				if err == sql.ErrNoRows {
					return domerrors.Newf(domerrors.CodeNotFound, "strand %s not found", id)
				}
				return domerrors.Wrap(domerrors.CodeStoreUnavailable, "lock strand for mutation", err)
			}
			st := model.toDomain()
			now := time.Now().UTC()
			if patch.TrackingStatus != nil {
				if err := st.TransitionStatus(*patch.TrackingStatus, now); err != nil {
					return err
				}
			}
			if patch.ResonanceState != nil {
				st.UpdateResonance(*patch.ResonanceState, domain.ResonanceBounds{
						PhiMin: -1e18, PhiMax: 1e18, RhoMin: -1e18, RhoMax: 1e18,
					}, now)
			}
			if patch.Telemetry != nil {
				st.UpdateTelemetry(*patch.Telemetry, now)
			}
			if patch.Scores != nil {
				st.UpdateScores(*patch.Scores, now)
			}
			_, err := tx.NewUpdate().Model(fromDomain(st)).
			Column("tracking_status", "resonance_state", "telemetry", "scores", "updated_at").
			Where("id = ?", id).
			Exec(ctx)
			if err != nil {
				return domerrors.Wrap(domerrors.CodeStoreUnavailable, "persist mutable field update", err)
			}
			return nil
	})
}
