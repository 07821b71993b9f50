package store

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Memory is an in-process KeyedStore with the same conditional semantics as
// the DynamoDB backend. Every committed write that alters a row is appended
// to a change queue that callers consume with Drain.
type Memory struct {
	mu      sync.Mutex
	rows    map[Key]Row
	changes []Change
	seq     int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{rows: make(map[Key]Row)}
}

// Drain returns and clears the pending change queue.
func (m *Memory) Drain() []Change {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.changes
	m.changes = nil
	return out
}

// Pending returns the number of undrained changes.
func (m *Memory) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.changes)
}

// Len returns the number of stored rows.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// Rows returns a snapshot of every row, ordered by key.
func (m *Memory) Rows() []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Row, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return lessKey(out[i].Key(), out[j].Key())
	})
	return out
}

func (m *Memory) Get(ctx context.Context, key Key, opts ...ReadOption) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[key].Clone(), nil
}

func (m *Memory) Add(ctx context.Context, row Row) error {
	err := m.Put(ctx, row, RowNotExists())
	if err == ErrPreconditionFailed {
		return ErrAlreadyExists
	}
	return err
}

func (m *Memory) Put(ctx context.Context, row Row, cond Cond) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := row.Key()
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.rows[key]
	if err := checkCond(cond, old); err != nil {
		return err
	}
	m.write(key, old, row.Clone())
	return nil
}

func (m *Memory) Update(ctx context.Context, key Key, upd *Update, cond Cond) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if upd.Empty() {
		return nil, ErrEmptyUpdate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.rows[key]
	if err := checkCond(And(RowExists(), cond), old); err != nil {
		return nil, err
	}
	next, err := applyUpdate(old, upd)
	if err != nil {
		return nil, err
	}
	m.write(key, old, next)
	return next.Clone(), nil
}

func (m *Memory) Delete(ctx context.Context, key Key, cond Cond) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.rows[key]
	if err := checkCond(cond, old); err != nil {
		return nil, err
	}
	if old == nil {
		return nil, nil
	}
	m.write(key, old, nil)
	return old.Clone(), nil
}

func (m *Memory) Transact(ctx context.Context, ops []Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	seen := make(map[Key]bool, len(ops))
	for _, op := range ops {
		if seen[op.Key] {
			return fmt.Errorf("store: transaction touches %s more than once", op.Key)
		}
		seen[op.Key] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	reasons := make([]string, len(ops))
	failed := false
	for i, op := range ops {
		reasons[i] = ReasonNone
		ok, err := evalCond(op.Cond, m.rows[op.Key])
		if err != nil {
			return err
		}
		if !ok {
			reasons[i] = ReasonConditionalFailed
			failed = true
		}
	}
	if failed {
		return &TxCanceledError{Reasons: reasons}
	}

	nexts := make([]Row, len(ops))
	for i, op := range ops {
		switch op.Kind {
		case OpPut:
			nexts[i] = op.Row.Clone()
		case OpUpdate:
			next, err := applyUpdate(m.rows[op.Key], op.Update)
			if err != nil {
				return err
			}
			nexts[i] = next
		}
	}
	for i, op := range ops {
		if op.Kind == OpCheck {
			continue
		}
		m.write(op.Key, m.rows[op.Key], nexts[i])
	}
	return nil
}

func (m *Memory) BatchGet(ctx context.Context, keys []Key) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Row
	for _, k := range keys {
		if r, ok := m.rows[k]; ok {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *Memory) BatchWrite(ctx context.Context, puts []Row, deletes []Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range puts {
		k := r.Key()
		m.write(k, m.rows[k], r.Clone())
	}
	for _, k := range deletes {
		if old, ok := m.rows[k]; ok {
			m.write(k, old, nil)
		}
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, q Query) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	pkAttr, skAttr := IndexAttrs(q.Index)
	if pkAttr == "" {
		return Page{}, fmt.Errorf("store: unknown index %q", q.Index)
	}
	after, err := decodeCursor(q.Cursor)
	if err != nil {
		return Page{}, err
	}

	m.mu.Lock()
	var matched []Row
	for _, r := range m.rows {
		if r.String(pkAttr) != q.PK || !r.Has(skAttr) {
			continue
		}
		ok, err := matchKeyCond(q.SK, r[skAttr])
		if err != nil {
			m.mu.Unlock()
			return Page{}, err
		}
		if ok {
			matched = append(matched, r.Clone())
		}
	}
	m.mu.Unlock()

	less := func(a, b Row) bool { return lessIndexed(a, b, skAttr) }
	if q.Descending {
		less = func(a, b Row) bool { return lessIndexed(b, a, skAttr) }
	}
	sort.Slice(matched, func(i, j int) bool { return less(matched[i], matched[j]) })

	if after != nil {
		pos := Row(after)
		i := sort.Search(len(matched), func(i int) bool { return less(pos, matched[i]) })
		matched = matched[i:]
	}

	page := Page{}
	evaluated := matched
	if q.Limit > 0 && len(matched) > q.Limit {
		evaluated = matched[:q.Limit]
		last := evaluated[len(evaluated)-1]
		lastKey := map[string]types.AttributeValue{
			PartitionKey: last[PartitionKey],
			SortKey:      last[SortKey],
		}
		if q.Index != "" {
			lastKey[pkAttr] = last[pkAttr]
			lastKey[skAttr] = last[skAttr]
		}
		if page.Cursor, err = encodeCursor(lastKey); err != nil {
			return Page{}, err
		}
	}
	for _, r := range evaluated {
		ok, err := evalCond(q.Filter, r)
		if err != nil {
			return Page{}, err
		}
		if ok {
			page.Rows = append(page.Rows, r)
		}
	}
	return page, nil
}

func (m *Memory) Scan(ctx context.Context, in ScanInput) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pkAttr, _ := IndexAttrs(in.Index)
	var out []Row
	for _, r := range m.Rows() {
		if !r.Has(pkAttr) {
			continue
		}
		ok, err := evalCond(in.Filter, r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// write stores next (nil removes) and queues a change when the row changed.
// Callers hold m.mu.
func (m *Memory) write(key Key, old, next Row) {
	if next == nil {
		delete(m.rows, key)
	} else {
		m.rows[key] = next
	}
	if old == nil && next == nil {
		return
	}
	if old != nil && next != nil && reflect.DeepEqual(old, next) {
		return
	}
	m.seq++
	m.changes = append(m.changes, Change{
		ID:  strconv.FormatInt(m.seq, 10),
		Key: key,
		Old: old.Clone(),
		New: next.Clone(),
	})
}

// checkCond maps a failed predicate to ErrNotFound or ErrPreconditionFailed.
func checkCond(cond Cond, row Row) error {
	ok, err := evalCond(cond, row)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if row == nil && requiresRow(cond) {
		return ErrNotFound
	}
	return ErrPreconditionFailed
}

// requiresRow reports whether cond can only hold on an existing row.
func requiresRow(cond Cond) bool {
	ok, _ := evalCond(cond, nil)
	return !ok
}

func applyUpdate(old Row, upd *Update) (Row, error) {
	next := old.Clone()
	if next == nil {
		next = Row{}
	}
	for _, mu := range upd.muts {
		switch mu.kind {
		case mutSet:
			v, err := toAttributeValue(mu.value)
			if err != nil {
				return nil, err
			}
			next[mu.attr] = v
		case mutSetIfNotExists:
			if next.Has(mu.attr) {
				continue
			}
			v, err := toAttributeValue(mu.value)
			if err != nil {
				return nil, err
			}
			next[mu.attr] = v
		case mutRemove:
			delete(next, mu.attr)
		case mutAdd:
			v, err := toAttributeValue(mu.value)
			if err != nil {
				return nil, err
			}
			delta, ok := v.(*types.AttributeValueMemberN)
			if !ok {
				return nil, fmt.Errorf("store: ADD %s needs a number, got %T", mu.attr, v)
			}
			cur := "0"
			if existing, ok := next[mu.attr].(*types.AttributeValueMemberN); ok {
				cur = existing.Value
			} else if next.Has(mu.attr) {
				return nil, fmt.Errorf("store: ADD %s on a non-numeric attribute", mu.attr)
			}
			next[mu.attr] = &types.AttributeValueMemberN{Value: addNumbers(cur, delta.Value)}
		}
	}
	return next, nil
}

func addNumbers(a, b string) string {
	if x, err := strconv.ParseInt(a, 10, 64); err == nil {
		if y, err := strconv.ParseInt(b, 10, 64); err == nil {
			return strconv.FormatInt(x+y, 10)
		}
	}
	x, _ := strconv.ParseFloat(a, 64)
	y, _ := strconv.ParseFloat(b, 64)
	return strconv.FormatFloat(x+y, 'f', -1, 64)
}

func evalCond(c Cond, row Row) (bool, error) {
	switch tc := c.(type) {
	case nil:
		return true, nil
	case existsCond:
		_, ok := row[tc.attr]
		return ok == tc.exists, nil
	case compareCond:
		have, ok := row[tc.attr]
		if !ok {
			return false, nil
		}
		want, err := toAttributeValue(tc.value)
		if err != nil {
			return false, err
		}
		if tc.op == opBeginsWith {
			s, ok := have.(*types.AttributeValueMemberS)
			p, _ := want.(*types.AttributeValueMemberS)
			return ok && p != nil && strings.HasPrefix(s.Value, p.Value), nil
		}
		cmp, ordered := compareValues(have, want)
		switch tc.op {
		case opEq:
			return cmp == 0, nil
		case opNe:
			return cmp != 0, nil
		}
		if !ordered {
			return false, nil
		}
		switch tc.op {
		case opLt:
			return cmp < 0, nil
		case opLe:
			return cmp <= 0, nil
		case opGt:
			return cmp > 0, nil
		case opGe:
			return cmp >= 0, nil
		}
		return false, nil
	case logicalCond:
		for _, sub := range tc.conds {
			ok, err := evalCond(sub, row)
			if err != nil {
				return false, err
			}
			if tc.and && !ok {
				return false, nil
			}
			if !tc.and && ok {
				return true, nil
			}
		}
		return tc.and, nil
	case notCond:
		ok, err := evalCond(tc.cond, row)
		return !ok, err
	}
	return false, fmt.Errorf("store: unsupported condition %T", c)
}

func matchKeyCond(kc *KeyCond, v types.AttributeValue) (bool, error) {
	if kc == nil {
		return true, nil
	}
	lo, err := toAttributeValue(kc.lo)
	if err != nil {
		return false, err
	}
	if kc.op == keyBeginsWith {
		s, ok := v.(*types.AttributeValueMemberS)
		p, _ := lo.(*types.AttributeValueMemberS)
		return ok && p != nil && strings.HasPrefix(s.Value, p.Value), nil
	}
	cmp, ordered := compareValues(v, lo)
	if !ordered {
		return false, nil
	}
	switch kc.op {
	case keyEq:
		return cmp == 0, nil
	case keyLt:
		return cmp < 0, nil
	case keyLe:
		return cmp <= 0, nil
	case keyGt:
		return cmp > 0, nil
	case keyGe:
		return cmp >= 0, nil
	case keyBetween:
		hi, err := toAttributeValue(kc.hi)
		if err != nil {
			return false, err
		}
		cmpHi, _ := compareValues(v, hi)
		return cmp >= 0 && cmpHi <= 0, nil
	}
	return false, nil
}

// compareValues orders two scalar attribute values of the same type. The
// second result is false when the values cannot be ordered, in which case
// the first is 0 only for equal values.
func compareValues(a, b types.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		if bv, ok := b.(*types.AttributeValueMemberS); ok {
			return strings.Compare(av.Value, bv.Value), true
		}
	case *types.AttributeValueMemberN:
		if bv, ok := b.(*types.AttributeValueMemberN); ok {
			x, _ := strconv.ParseFloat(av.Value, 64)
			y, _ := strconv.ParseFloat(bv.Value, 64)
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
	case *types.AttributeValueMemberB:
		if bv, ok := b.(*types.AttributeValueMemberB); ok {
			return bytes.Compare(av.Value, bv.Value), true
		}
	}
	if reflect.DeepEqual(a, b) {
		return 0, false
	}
	return 1, false
}

func lessKey(a, b Key) bool {
	if a.PK != b.PK {
		return a.PK < b.PK
	}
	return a.SK < b.SK
}

// lessIndexed orders rows by index sort key, then by primary key.
func lessIndexed(a, b Row, skAttr string) bool {
	if cmp, _ := compareValues(a[skAttr], b[skAttr]); cmp != 0 {
		return cmp < 0
	}
	return lessKey(a.Key(), b.Key())
}
