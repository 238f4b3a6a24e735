package handles

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/rpivk/internal/utils"
)

// Handle is any integer handle type issued by a Table. The zero value is the null handle.
type Handle interface {
	~uint64
}

// Table owns a set of driver objects and issues opaque handles for them. Handles are
// never reused after removal, so a stale handle can always be told apart from a live one.
type Table[H Handle, T any] struct {
	mutex   utils.OptionalRWMutex
	lastID  uint64
	objects *swiss.Map[H, T]
}

func (t *Table[H, T]) Init(useMutex bool, initialCapacity uint32) {
	t.mutex = utils.OptionalRWMutex{UseMutex: useMutex}
	t.lastID = 0
	t.objects = swiss.NewMap[H, T](initialCapacity)
}

// Insert takes ownership of obj and returns its new handle
func (t *Table[H, T]) Insert(obj T) H {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.lastID++
	handle := H(t.lastID)
	t.objects.Put(handle, obj)

	return handle
}

// Get returns the object for a live handle
func (t *Table[H, T]) Get(handle H) (T, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.objects.Get(handle)
}

// Remove releases a live handle and returns the object it referred to
func (t *Table[H, T]) Remove(handle H) (T, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	obj, ok := t.objects.Get(handle)
	if !ok {
		return obj, false
	}

	t.objects.Delete(handle)
	return obj, true
}

// Issued reports whether handle was ever returned by Insert, whether or not it is still live
func (t *Table[H, T]) Issued(handle H) bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return handle != 0 && uint64(handle) <= t.lastID
}

func (t *Table[H, T]) Count() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.objects.Count()
}

// Visit calls visitor once for each live object until visitor returns false. Objects must
// not be inserted or removed from inside visitor.
func (t *Table[H, T]) Visit(visitor func(handle H, obj T) bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	t.objects.Iter(func(handle H, obj T) bool {
		return !visitor(handle, obj)
	})
}

func (t *Table[H, T]) Validate() error {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if t.objects.Count() > int(t.lastID) {
		return errors.Newf("the table holds %d objects but has only issued %d handles", t.objects.Count(), t.lastID)
	}

	var err error
	t.objects.Iter(func(handle H, obj T) bool {
		if handle == 0 || uint64(handle) > t.lastID {
			err = errors.Newf("the table holds handle %d, which it never issued", uint64(handle))
			return true
		}
		return false
	})

	return err
}
