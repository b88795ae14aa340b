package index

// GetKeyRange collects the values for every key in [start, stop].
func (b *BplusTree[K, V]) GetKeyRange(start, stop K) ([]V, error) {
	iter, err := b.BeginAt(start)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	res := []V{}
	for !iter.IsEnd() {
		key, val, err := iter.Next()
		if err != nil {
			return res, err
		}

		if b.cmp(key, stop) > 0 {
			break
		}
		res = append(res, val)
	}

	return res, nil
}

// BatchInsert inserts every pair, stopping on the first failure. Duplicate
// keys are skipped, not errors.
func (b *BplusTree[K, V]) BatchInsert(items map[K]V) error {
	for k, v := range items {
		if _, err := b.Insert(k, v); err != nil {
			return err
		}
	}

	return nil
}
