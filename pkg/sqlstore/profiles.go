package sqlstore

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/grafana/flamekeeper/pkg/model"
	"github.com/grafana/flamekeeper/pkg/store"
)

// maxQueryIDs bounds the number of ids bound to a single statement.
const maxQueryIDs = 500

var _ store.Store = (*SQLStore)(nil)

var columns = map[store.Field]string{
	store.FieldScope:       "groupby",
	store.FieldScriptType:  "script_type",
	store.FieldDuration:    "duration",
	store.FieldSampleCount: "sample_count",
	store.FieldDataSize:    "data_size",
}

func (s *SQLStore) Insert(ctx context.Context, p *model.Profile) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	p.EnsureRequestID()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.CreatedAt = p.CreatedAt.UTC()
	if p.FinishedAt != nil {
		t := p.FinishedAt.UTC()
		p.FinishedAt = &t
	}
	if err := s.orm.WithContext(ctx).Create(p).Error; err != nil {
		return 0, errors.Wrap(err, "insert profile")
	}
	return p.ID, nil
}

func (s *SQLStore) Get(ctx context.Context, id int64) (*model.Profile, error) {
	var p model.Profile
	err := s.orm.WithContext(ctx).First(&p, id).Error
	switch {
	case err == nil:
		return &p, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, model.ErrProfileNotFound
	default:
		return nil, errors.Wrap(err, "get profile")
	}
}

func (s *SQLStore) Update(ctx context.Context, id int64, u model.ProfileUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	cols, err := updateColumns(u)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		_, err = s.Get(ctx, id)
		return err
	}
	r := s.orm.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", id).Updates(cols)
	if r.Error != nil {
		return errors.Wrap(r.Error, "update profile")
	}
	if r.RowsAffected == 0 {
		return model.ErrProfileNotFound
	}
	return nil
}

// updateColumns maps the set fields of an update to column values.
func updateColumns(u model.ProfileUpdate) (map[string]interface{}, error) {
	var p model.Profile
	if err := u.Apply(&p); err != nil {
		return nil, err
	}
	cols := make(map[string]interface{})
	if u.FlameGraph != nil {
		cols["flame_data"] = p.FlameData
		cols["data_size"] = p.DataSize
		cols["sample_count"] = p.SampleCount
		cols["max_stack_depth"] = p.MaxStackDepth
	}
	if u.Duration != nil {
		cols["duration"] = p.Duration
	}
	if u.FinishedAt != nil {
		cols["finished_at"] = p.FinishedAt.UTC()
	}
	if u.Reason != nil {
		cols["reason"] = p.Reason
	}
	if u.LockReason != nil {
		cols["lock_reason"] = p.LockReason
	}
	if u.ResponseCode != nil {
		cols["response_code"] = p.ResponseCode
	}
	if u.SampleRate != nil {
		cols["sample_rate"] = p.SampleRate
	}
	if u.DBReads != nil {
		cols["db_reads"] = p.DBReads
	}
	if u.DBWrites != nil {
		cols["db_writes"] = p.DBWrites
	}
	if u.MemoryPeak != nil {
		cols["memory_peak"] = p.MemoryPeak
	}
	return cols, nil
}

func (s *SQLStore) ClearReason(ctx context.Context, f store.Filter, r model.Reason) (int64, error) {
	if r == model.ReasonNone {
		return 0, nil
	}
	return s.inBatches(f, func(f store.Filter) (int64, error) {
		res := s.orm.WithContext(ctx).Model(&model.Profile{}).
			Scopes(filter(f)).
			Where("reason & ? <> 0", int(r)).
			Update("reason", gorm.Expr("reason & ~?", int(r)))
		return res.RowsAffected, errors.Wrap(res.Error, "clear profile reason")
	})
}

func (s *SQLStore) DeleteWhere(ctx context.Context, f store.Filter) (int64, error) {
	return s.inBatches(f, func(f store.Filter) (int64, error) {
		res := s.orm.WithContext(ctx).
			Session(&gorm.Session{AllowGlobalUpdate: true}).
			Scopes(filter(f)).
			Delete(&model.Profile{})
		return res.RowsAffected, errors.Wrap(res.Error, "delete profiles")
	})
}

// inBatches splits long id lists over several statements.
func (s *SQLStore) inBatches(f store.Filter, fn func(store.Filter) (int64, error)) (int64, error) {
	if len(f.IDs) <= maxQueryIDs {
		return fn(f)
	}
	var total int64
	for _, ids := range lo.Chunk(f.IDs, maxQueryIDs) {
		f.IDs = ids
		n, err := fn(f)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *SQLStore) TopByDuration(ctx context.Context, f store.Filter, limit, offset int) ([]model.Profile, error) {
	if limit == 0 {
		return []model.Profile{}, nil
	}
	if limit < 0 {
		// SQLite does not accept OFFSET without LIMIT.
		limit = math.MaxInt32
	}
	var profiles []model.Profile
	err := s.orm.WithContext(ctx).
		Omit("flame_data").
		Scopes(filter(f)).
		Order("duration DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&profiles).Error
	if err != nil {
		return nil, errors.Wrap(err, "query profiles")
	}
	return profiles, nil
}

func (s *SQLStore) CountDistinct(ctx context.Context, field store.Field, f store.Filter) (int64, error) {
	col, ok := columns[field]
	if !ok {
		return 0, store.InvalidFieldError(field)
	}
	var n int64
	err := s.orm.WithContext(ctx).Model(&model.Profile{}).
		Scopes(filter(f)).
		Distinct(col).
		Count(&n).Error
	return n, errors.Wrap(err, "count profiles")
}

func (s *SQLStore) SumGroupBy(ctx context.Context, by, sum store.Field, f store.Filter) ([]store.Group, error) {
	byCol, ok := columns[by]
	if !ok {
		return nil, store.InvalidFieldError(by)
	}
	sumCol, ok := columns[sum]
	if !ok || !sum.Numeric() {
		return nil, store.InvalidFieldError(sum)
	}
	var rows []struct {
		GroupKey string
		Count    int64
		Sum      float64
	}
	err := s.orm.WithContext(ctx).Model(&model.Profile{}).
		Select(byCol + " AS group_key, COUNT(*) AS count, COALESCE(SUM(" + sumCol + "), 0) AS sum").
		Scopes(filter(f)).
		Group(byCol).
		Order(byCol).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "aggregate profiles")
	}
	groups := make([]store.Group, len(rows))
	for i, r := range rows {
		groups[i] = store.Group{Key: r.GroupKey, Count: r.Count, Sum: r.Sum}
	}
	return groups, nil
}

func filter(f store.Filter) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if f.IDs != nil {
			if len(f.IDs) == 0 {
				tx = tx.Where("1 = 0")
			} else {
				tx = tx.Where("id IN ?", f.IDs)
			}
		}
		if f.Scope != nil {
			tx = tx.Where("groupby = ?", *f.Scope)
		}
		if f.Reason != model.ReasonNone {
			tx = tx.Where("reason & ? <> 0", int(f.Reason))
		}
		if f.NoReason {
			tx = tx.Where("reason = 0")
		}
		if f.Unlocked {
			tx = tx.Where("lock_reason = ''")
		}
		if !f.CreatedBefore.IsZero() {
			tx = tx.Where("created_at < ?", f.CreatedBefore.UTC())
		}
		return tx
	}
}
