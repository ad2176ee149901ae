package visitor

import "iter"

// Walker is a pull-style iterator over a search:
//
//	w, err := v.Walk(root)
//	if err != nil {
//		return err
//	}
//	defer w.Close()
//	for w.Next() {
//		fmt.Println(w.Path())
//	}
//	return w.Err()
type Walker struct {
	next func() (string, error, bool)
	stop func()
	path string
	err  error
	done bool
}

// Walk validates root like Search and returns a Walker over its entries.
// The walk does not start until the first call to Next.
func (v *Visitor) Walk(root string) (*Walker, error) {
	seq, err := v.Search(root)
	if err != nil {
		return nil, err
	}
	next, stop := iter.Pull2(seq)
	return &Walker{next: next, stop: stop}, nil
}

// Next advances to the next entry. It returns false when the walk is over or
// failed; Err reports which.
func (w *Walker) Next() bool {
	if w.done {
		return false
	}
	path, err, ok := w.next()
	if !ok {
		w.Close()
		return false
	}
	if err != nil {
		w.err = err
		w.Close()
		return false
	}
	w.path = path
	return true
}

// Path returns the entry of the last successful Next.
func (w *Walker) Path() string { return w.path }

// Err returns the error that ended the walk, if any.
func (w *Walker) Err() error { return w.err }

// Close abandons the rest of the walk. It is safe to call more than once.
func (w *Walker) Close() {
	if w.done {
		return
	}
	w.done = true
	w.path = ""
	w.stop()
}
