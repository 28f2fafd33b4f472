package river

import (
	"context"
	"fmt"
	"strconv"
)

// Defaults for Options.
const (
	DefaultIDColumn     = "_id"
	DefaultOpTypeColumn = "_optype"
	DefaultDelimiter    = ","
)

// Key identifies an accumulation. Consecutive rows with equal keys merge into
// one document.
type Key struct {
	ID     string
	OpType string
}

func (k Key) String() string { return k.OpType + "/" + k.ID }

// Options configure a Session.
type Options struct {
	IDColumn        string
	OpTypeColumn    string
	Delimiter       string
	Digest          bool
	DigestScope     DigestScope
	IDPrefix        string
	SingletonArrays bool
	Observer        Observer
}

// Option mutates Options.
type Option func(*Options)

// WithIDColumn names the column holding the document identifier.
func WithIDColumn(name string) Option { return func(o *Options) { o.IDColumn = name } }

// WithOpTypeColumn names the column holding the operation type.
func WithOpTypeColumn(name string) Option { return func(o *Options) { o.OpTypeColumn = name } }

// WithDelimiter sets the separator used to split scalar-array cells.
func WithDelimiter(d string) Option { return func(o *Options) { o.Delimiter = d } }

// WithDigest enables the digest gate with the given scope.
func WithDigest(scope DigestScope) Option {
	return func(o *Options) {
		o.Digest = true
		o.DigestScope = scope
	}
}

// WithIDPrefix prefixes identifiers generated for rows that carry none.
func WithIDPrefix(p string) Option { return func(o *Options) { o.IDPrefix = p } }

// WithSingletonArrays renders a "name[]" leaf holding a single value as a
// plain scalar.
func WithSingletonArrays(on bool) Option { return func(o *Options) { o.SingletonArrays = on } }

// WithObserver installs the observer for flushes and anomalies.
func WithObserver(obs Observer) Option { return func(o *Options) { o.Observer = obs } }

// Stats counts what a session did so far.
type Stats struct {
	Rows       int `json:"rows"`
	Documents  int `json:"documents"`
	Created    int `json:"created"`
	Indexed    int `json:"indexed"`
	Deleted    int `json:"deleted"`
	Suppressed int `json:"suppressed"`
	Anomalies  int `json:"anomalies"`
}

type state int

const (
	stateIdle state = iota
	stateEmpty
	stateOpen
	stateEnded
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "not begun"
	case stateEmpty:
		return "empty"
	case stateOpen:
		return "open"
	default:
		return "ended"
	}
}

// Session turns one stream of rows into documents. It is not safe for
// concurrent use and must not be reused once ended.
type Session struct {
	sink    Sink
	opts    Options
	obs     Observer
	digests *digestGate

	state  state
	header []string
	paths  []FieldPath
	body   []int
	idCol  int
	opCol  int

	cur    Key
	tree   *Node
	rows   int
	rowSeq uint64
	nextID uint64

	// first unrecognised op type of the open accumulation, routed at flush
	unknownOp string

	stats Stats
}

// New returns a session that flushes into sink.
func New(sink Sink, opts ...Option) *Session {
	o := Options{
		IDColumn:     DefaultIDColumn,
		OpTypeColumn: DefaultOpTypeColumn,
		Delimiter:    DefaultDelimiter,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.IDColumn == "" {
		o.IDColumn = DefaultIDColumn
	}
	if o.OpTypeColumn == "" {
		o.OpTypeColumn = DefaultOpTypeColumn
	}
	if o.Delimiter == "" {
		o.Delimiter = DefaultDelimiter
	}
	s := &Session{sink: sink, opts: o, obs: o.Observer, idCol: -1, opCol: -1}
	if s.obs == nil {
		s.obs = nopObserver{}
	}
	if o.Digest {
		s.digests = newDigestGate(o.DigestScope)
	}
	return s
}

// Stats returns the counters accumulated so far.
func (s *Session) Stats() Stats { return s.stats }

// Header returns the recorded header, or nil before Keys.
func (s *Session) Header() []string { return s.header }

// Begin opens the session.
func (s *Session) Begin() error {
	if s.state != stateIdle {
		return &SequenceError{Op: "begin", State: s.state.String()}
	}
	s.state = stateEmpty
	return nil
}

// Keys records the header. Every column except the identifier and
// operation-type columns is parsed as a field path; the header is rejected as
// a whole if any path is malformed or the paths disagree on document shape.
func (s *Session) Keys(columns []string) error {
	if s.state != stateEmpty && s.state != stateOpen {
		return &SequenceError{Op: "keys", State: s.state.String()}
	}
	if s.header != nil {
		return &SequenceError{Op: "keys", State: "keyed"}
	}
	paths := make([]FieldPath, len(columns))
	body := make([]int, 0, len(columns))
	idCol, opCol := -1, -1
	shape := newShapeCheck()
	for i, col := range columns {
		switch {
		case col == s.opts.IDColumn && idCol < 0:
			idCol = i
			continue
		case col == s.opts.OpTypeColumn && opCol < 0:
			opCol = i
			continue
		}
		p, err := ParsePath(col)
		if err != nil {
			return err
		}
		if err := shape.add(p); err != nil {
			return err
		}
		paths[i] = p
		body = append(body, i)
	}
	s.header = append([]string(nil), columns...)
	s.paths = paths
	s.body = body
	s.idCol = idCol
	s.opCol = opCol
	return nil
}

// Values feeds one row. A row whose key differs from the open accumulation
// flushes it first. A rejected row leaves the accumulation untouched; a failed
// flush discards the old accumulation and the row is not applied.
func (s *Session) Values(ctx context.Context, row []*string) error {
	switch {
	case s.state == stateIdle || s.state == stateEnded:
		return &SequenceError{Op: "values", State: s.state.String()}
	case s.header == nil:
		return &SequenceError{Op: "values", State: "missing keys"}
	case len(row) != len(s.header):
		return &RowShapeError{Want: len(s.header), Got: len(row)}
	}

	key, rawOp := s.deriveKey(row)
	if s.state == stateOpen && key != s.cur {
		if err := s.flush(ctx); err != nil {
			return err
		}
	}
	if s.state == stateEmpty {
		s.cur = key
		s.tree = NewMap()
		s.rows = 0
		s.unknownOp = ""
		s.state = stateOpen
	}
	if rawOp != "" && s.unknownOp == "" {
		s.unknownOp = rawOp
	}

	s.rowSeq++
	for _, i := range s.body {
		s.tree.Apply(s.paths[i], row[i], s.rowSeq, s.opts.Delimiter)
	}
	s.rows++
	s.stats.Rows++
	return nil
}

// End flushes the pending accumulation, if any, and closes the session.
func (s *Session) End(ctx context.Context) error {
	switch s.state {
	case stateIdle, stateEnded:
		return &SequenceError{Op: "end", State: s.state.String()}
	case stateOpen:
		err := s.flush(ctx)
		s.state = stateEnded
		return err
	default:
		s.state = stateEnded
		return nil
	}
}

// deriveKey returns the grouping key of row. An unrecognised op type groups
// as index and is returned as rawOp so the flush can report it once.
func (s *Session) deriveKey(row []*string) (k Key, rawOp string) {
	if s.idCol >= 0 && row[s.idCol] != nil {
		k.ID = *row[s.idCol]
	} else {
		s.nextID++
		k.ID = s.opts.IDPrefix + strconv.FormatUint(s.nextID, 10)
	}
	k.OpType = OpIndex
	if s.opCol >= 0 && row[s.opCol] != nil {
		op := *row[s.opCol]
		if KnownOp(op) {
			k.OpType = op
		} else {
			rawOp = op
		}
	}
	return k, rawOp
}

// flush routes the open accumulation and discards it before calling the sink,
// so a failing sink never sees the same tree twice.
func (s *Session) flush(ctx context.Context) error {
	key, tree, rows := s.cur, s.tree, s.rows
	routeOp := key.OpType
	if s.unknownOp != "" {
		routeOp = s.unknownOp
	}
	s.cur, s.tree, s.rows, s.unknownOp = Key{}, nil, 0, ""
	s.state = stateEmpty

	if s.opts.SingletonArrays {
		tree.collapseSingletons()
	}
	ev := FlushEvent{Key: key, Op: key.OpType, Rows: rows}
	s.stats.Documents++

	var (
		d      digest
		gating = s.digests != nil && key.OpType != OpDelete
	)
	if gating {
		var suppress bool
		var err error
		d, suppress, err = s.digests.check(key, tree)
		if err != nil {
			return err
		}
		if suppress {
			if !KnownOp(routeOp) {
				s.stats.Anomalies++
				s.obs.Anomaly(&UnknownOperationError{OpType: routeOp, ID: key.ID})
			}
			ev.Suppressed = true
			s.stats.Suppressed++
			s.obs.Flushed(ev)
			return nil
		}
	}

	if !KnownOp(routeOp) {
		s.stats.Anomalies++
	}
	op, err := Route(ctx, s.sink, s.obs, routeOp, key.ID, tree)
	if err != nil {
		return fmt.Errorf("flush %s: %w", key, err)
	}
	ev.Op = op
	switch op {
	case OpCreate:
		s.stats.Created++
	case OpIndex:
		s.stats.Indexed++
	case OpDelete:
		s.stats.Deleted++
	}
	if gating {
		s.digests.record(key, d)
	} else if s.digests != nil {
		s.digests.forget(key.ID)
	}
	s.obs.Flushed(ev)
	return nil
}
