package cart

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Storageはカートのスナップショットを保存する先（ファイル/Redis）
type Storage interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, snapshot []byte) error
}

// ErrEmptySnapshotは保存済みのカートが無いことを表す
var ErrEmptySnapshot = errors.New("no cart snapshot")

type Line struct {
	Key       string          `json:"key"` // productId-variantId-size
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Quantity  int64           `json:"quantity"`
	Image     string          `json:"image"`
}

func (l Line) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(l.Quantity))
}

// 表示用の項目（数量以外）
type Display struct {
	Name  string
	Color string
	Image string
}

func LineKey(productID, variantID, size string) string {
	return productID + "-" + variantID + "-" + size
}

// Storeはクライアント側のカート。変更のたびにStorageへ書き出す
type Store struct {
	mu      sync.Mutex
	lines   []Line
	storage Storage
	log     logrus.FieldLogger

	subSeq int
	subs   map[int]func([]Line)
}

// Openは保存済みスナップショットを読み込む。読めない・壊れている場合は空のカート
func Open(ctx context.Context, storage Storage, log logrus.FieldLogger) *Store {
	s := &Store{storage: storage, log: log, lines: []Line{}, subs: map[int]func([]Line){}}

	raw, err := storage.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrEmptySnapshot) {
			log.WithError(err).Warn("cart load failed")
		}
		return s
	}

	var lines []Line
	if err := json.Unmarshal(raw, &lines); err != nil {
		log.WithError(err).Warn("cart snapshot discarded")
		return s
	}
	s.lines = lo.Filter(lines, func(l Line, _ int) bool { return l.Quantity > 0 && l.Key != "" })
	return s
}

// AddLineは同じ(product, variant, size)なら数量を足す。マイナスも可。0以下になった行は消す
func (s *Store) AddLine(ctx context.Context, productID, variantID, size string, price decimal.Decimal, delta int64, d Display) error {
	key := LineKey(productID, variantID, size)

	return s.mutate(ctx, func(lines []Line) []Line {
		_, idx, found := lo.FindIndexOf(lines, func(l Line) bool { return l.Key == key })
		if found {
			lines[idx].Quantity += delta
			if lines[idx].Quantity <= 0 {
				return append(lines[:idx], lines[idx+1:]...)
			}
			return lines
		}
		if delta <= 0 {
			return lines
		}
		return append(lines, Line{
			Key:       key,
			ProductID: productID,
			VariantID: variantID,
			Name:      d.Name,
			Price:     price,
			Color:     d.Color,
			Size:      size,
			Quantity:  delta,
			Image:     d.Image,
		})
	})
}

func (s *Store) RemoveLine(ctx context.Context, key string) error {
	return s.mutate(ctx, func(lines []Line) []Line {
		return lo.Reject(lines, func(l Line, _ int) bool { return l.Key == key })
	})
}

// Clearは決済確定後か、利用者の明示操作でだけ呼ぶ
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func([]Line) []Line { return []Line{} })
}

// Linesはコピーを返す
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Line(nil), s.lines...)
}

func (s *Store) Count() int64 {
	return lo.SumBy(s.Lines(), func(l Line) int64 { return l.Quantity })
}

func (s *Store) Subtotal() decimal.Decimal {
	return lo.Reduce(s.Lines(), func(acc decimal.Decimal, l Line, _ int) decimal.Decimal {
		return acc.Add(l.LineTotal())
	}, decimal.Zero)
}

func (s *Store) IsEmpty() bool {
	return len(s.Lines()) == 0
}

// Subscribeは変更後の行を受け取る。戻り値で解除
func (s *Store) Subscribe(fn func([]Line)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subSeq++
	id := s.subSeq
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) mutate(ctx context.Context, fn func([]Line) []Line) error {
	s.mu.Lock()
	next := fn(append([]Line(nil), s.lines...))
	if next == nil {
		next = []Line{}
	}
	s.lines = next

	raw, err := json.Marshal(next)
	if err != nil {
		s.mu.Unlock()
		return errors.Wrap(err, "encode cart")
	}
	subs := lo.Values(s.subs)
	snapshot := append([]Line(nil), next...)
	s.mu.Unlock()

	//通知は保存の成否に関わらず行う（メモリ上の状態は更新済み）
	for _, fn := range subs {
		fn(snapshot)
	}

	if err := s.storage.Save(ctx, raw); err != nil {
		return errors.Wrap(err, "save cart")
	}
	return nil
}
