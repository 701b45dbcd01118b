package storage

// PrefixDB is a namespace inside a shared database. Keys are stored with a
// fixed prefix; callers only ever see their logical keys. The daemon keeps
// the action queue under "aq/" and the account cache under "acct/".
type PrefixDB struct {
	inner  BatchDB
	prefix []byte
}

// NewPrefixDB creates a namespace over inner.
func NewPrefixDB(inner BatchDB, prefix []byte) *PrefixDB {
	p := make([]byte, len(prefix))
	copy(p, prefix)
	return &PrefixDB{inner: inner, prefix: p}
}

func (p *PrefixDB) key(k []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(k))
	out = append(out, p.prefix...)
	return append(out, k...)
}

func (p *PrefixDB) Get(key []byte) ([]byte, error) { return p.inner.Get(p.key(key)) }

func (p *PrefixDB) Put(key, value []byte) error { return p.inner.Put(p.key(key), value) }

func (p *PrefixDB) Delete(key []byte) error { return p.inner.Delete(p.key(key)) }

func (p *PrefixDB) Has(key []byte) (bool, error) { return p.inner.Has(p.key(key)) }

// ForEach iterates the namespace keys starting with prefix. fn receives keys
// without the namespace prefix.
func (p *PrefixDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	n := len(p.prefix)
	return p.inner.ForEach(p.key(prefix), func(key, value []byte) error {
		return fn(key[n:], value)
	})
}

// Clear deletes every key in the namespace in one batch and returns how many
// keys were removed. Other namespaces are untouched.
func (p *PrefixDB) Clear() (int, error) {
	b := p.inner.NewBatch()
	count := 0
	err := p.inner.ForEach(p.prefix, func(key, _ []byte) error {
		count++
		return b.Delete(key)
	})
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	if err := b.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// Close is a no-op; the shared database is closed by its owner.
func (p *PrefixDB) Close() error {
	return nil
}

// NewBatch returns an atomic batch over the shared database whose keys are
// scoped to the namespace.
func (p *PrefixDB) NewBatch() Batch {
	return &prefixBatch{ns: p, inner: p.inner.NewBatch()}
}

type prefixBatch struct {
	ns    *PrefixDB
	inner Batch
}

func (b *prefixBatch) Put(key, value []byte) error { return b.inner.Put(b.ns.key(key), value) }

func (b *prefixBatch) Delete(key []byte) error { return b.inner.Delete(b.ns.key(key)) }

func (b *prefixBatch) Commit() error { return b.inner.Commit() }
