package dao

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-sql-driver/mysql"
	"go.uber.org/multierr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/utrading/utrading-limit-relayer/internal/models"
	"github.com/utrading/utrading-limit-relayer/internal/order"
	"github.com/utrading/utrading-limit-relayer/pkg/logger"
)

const dayFormat = "2006-01-02"

var errAlreadySaved = errors.New("order already saved")

// OrderStore 单链订单存储：订单、执行回执、每日计数
type OrderStore struct {
	db      *gorm.DB
	chainID int64
	pairs   order.PairAddresser

	ordersTable   string
	receiptsTable string
	countersTable string

	now func() time.Time
}

func NewOrderStore(db *gorm.DB, chainID int64, pairs order.PairAddresser) *OrderStore {
	return &OrderStore{
		db:            db,
		chainID:       chainID,
		pairs:         pairs,
		ordersTable:   models.LimitOrderTable(chainID),
		receiptsTable: models.ExecutedOrderTable(chainID),
		countersTable: models.OrderCounterTable(chainID),
		now:           time.Now,
	}
}

func (s *OrderStore) ChainID() int64 {
	return s.chainID
}

// SaveOrder 保存订单，digest 已存在时静默成功
// 新插入的订单在同一事务内累加当日计数；返回是否为新订单
func (s *OrderStore) SaveOrder(ctx context.Context, o order.StoredOrder) (bool, error) {
	row, err := toOrderRow(o, s.pairs)
	if err != nil {
		return false, err
	}

	day := s.now().UTC().Format(dayFormat)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(s.ordersTable).Create(row).Error; err != nil {
			if isDuplicateKey(err) {
				return errAlreadySaved
			}
			return err
		}

		return tx.Table(s.countersTable).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			DoUpdates: clause.Assignments(map[string]any{"counter": gorm.Expr("counter + ?", 1)}),
		}).Create(&models.OrderCounter{Date: day, Counter: 1}).Error
	})

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errAlreadySaved):
		logger.Debug().Str("digest", row.Digest).Msg("order already saved")
		return false, nil
	default:
		return false, order.NewPersistenceError("save order", err)
	}
}

// SaveOrders 逐个保存，单个失败不影响其他订单
func (s *OrderStore) SaveOrders(ctx context.Context, orders []order.StoredOrder) (int, error) {
	var (
		saved int
		errs  error
	)
	for _, o := range orders {
		created, err := s.SaveOrder(ctx, o)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", o.Digest.Hex(), err))
			continue
		}
		if created {
			saved++
		}
	}
	return saved, errs
}

// QueryEligibleOrders 查询有效且处于时间窗口内的订单
// 价格过滤由调用方在内存中用大数比较完成
func (s *OrderStore) QueryEligibleOrders(ctx context.Context, pairAddress, tokenIn common.Address, now int64) ([]order.StoredOrder, error) {
	var rows []*models.LimitOrder
	err := s.db.WithContext(ctx).Table(s.ordersTable).
		Where("valid = ? AND pair_address = ? AND token_in = ?", true, pairAddress.Hex(), tokenIn.Hex()).
		Where("start_time < ? AND end_time > ?", now, now).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, order.NewPersistenceError("query eligible orders", err)
	}

	return s.decodeOrders(rows)
}

// InvalidateOrders 批量标记 valid=false，只更新当前有效的订单
func (s *OrderStore) InvalidateOrders(ctx context.Context, digests []common.Hash) (int64, error) {
	if len(digests) == 0 {
		return 0, nil
	}

	hexes := make([]string, 0, len(digests))
	for _, d := range digests {
		hexes = append(hexes, d.Hex())
	}

	result := s.db.WithContext(ctx).Table(s.ordersTable).
		Where("digest IN ? AND valid = ?", hexes, true).
		Updates(map[string]any{"valid": false, "updated_at": s.now()})
	if result.Error != nil {
		return 0, order.NewPersistenceError("invalidate orders", result.Error)
	}

	return result.RowsAffected, nil
}

// RecordExecutionReceipts 逐条写入回执，txHash 冲突只影响该条
// 返回成功写入的回执；失败项通过 multierr 聚合
func (s *OrderStore) RecordExecutionReceipts(ctx context.Context, receipts []order.ExecutedOrder) ([]order.ExecutedOrder, error) {
	saved := make([]order.ExecutedOrder, 0, len(receipts))
	var errs error

	for _, r := range receipts {
		if r.SubmittedAt.IsZero() {
			r.SubmittedAt = s.now()
		}

		row, err := toReceiptRow(r)
		if err != nil {
			errs = multierr.Append(errs, order.NewPersistenceError("record receipt "+r.TxHash.Hex(), err))
			continue
		}

		if err = s.db.WithContext(ctx).Table(s.receiptsTable).Create(row).Error; err != nil {
			if isDuplicateKey(err) {
				err = fmt.Errorf("%w: tx %s", order.ErrDuplicate, r.TxHash.Hex())
			}
			errs = multierr.Append(errs, order.NewPersistenceError("record receipt "+r.TxHash.Hex(), err))
			continue
		}

		saved = append(saved, r)
	}

	return saved, errs
}

// SubmittedSince 查询指定时间之后写入的回执
func (s *OrderStore) SubmittedSince(ctx context.Context, since time.Time) ([]order.ExecutedOrder, error) {
	var rows []*models.ExecutedOrder
	err := s.db.WithContext(ctx).Table(s.receiptsTable).
		Where("created_at > ?", since).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, order.NewPersistenceError("query receipts", err)
	}

	out := make([]order.ExecutedOrder, 0, len(rows))
	for _, row := range rows {
		r, err := fromReceiptRow(row)
		if err != nil {
			logger.Warn().Err(err).Msg("skip undecodable receipt")
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// ExpiredDigests 查询已过 endTime 但仍有效的订单 digest
func (s *OrderStore) ExpiredDigests(ctx context.Context, now int64, limit int) ([]common.Hash, error) {
	var hexes []string
	q := s.db.WithContext(ctx).Table(s.ordersTable).
		Where("valid = ? AND end_time <= ?", true, now).
		Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("digest", &hexes).Error; err != nil {
		return nil, order.NewPersistenceError("query expired orders", err)
	}

	out := make([]common.Hash, 0, len(hexes))
	for _, h := range hexes {
		out = append(out, common.HexToHash(h))
	}
	return out, nil
}

// ListOrders 返回全部订单（运维使用）
func (s *OrderStore) ListOrders(ctx context.Context) ([]order.StoredOrder, error) {
	var rows []*models.LimitOrder
	if err := s.db.WithContext(ctx).Table(s.ordersTable).Order("id").Find(&rows).Error; err != nil {
		return nil, order.NewPersistenceError("list orders", err)
	}
	return s.decodeOrders(rows)
}

// TodayCounter 当日（UTC）新订单计数
func (s *OrderStore) TodayCounter(ctx context.Context) (int64, error) {
	var row models.OrderCounter
	err := s.db.WithContext(ctx).Table(s.countersTable).
		Where("date = ?", s.now().UTC().Format(dayFormat)).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, order.NewPersistenceError("query counter", err)
	}
	return row.Counter, nil
}

// Ping 健康检查
func (s *OrderStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *OrderStore) decodeOrders(rows []*models.LimitOrder) ([]order.StoredOrder, error) {
	out := make([]order.StoredOrder, 0, len(rows))
	for _, row := range rows {
		o, err := fromOrderRow(row)
		if err != nil {
			return nil, order.NewPersistenceError("decode order", err)
		}
		out = append(out, o)
	}
	return out, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
