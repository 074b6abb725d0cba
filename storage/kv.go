package storage

import "errors"

// Get returns the raw value stored under a client key. The boolean is false
// if the key does not exist.
func (s *Storage) Get(key string) ([]byte, bool, error) {
	var v []byte
	if err := s.getArtifact(kvPrefix, []byte(key), &v); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

// Put stores a raw value under a client key.
func (s *Storage) Put(key string, value []byte) error {
	return s.setArtifact(kvPrefix, []byte(key), value)
}

// Delete removes a client key. Deleting a missing key is not an error.
func (s *Storage) Delete(key string) error {
	if err := s.deleteArtifact(kvPrefix, []byte(key)); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// Keys lists the client keys starting with prefix.
func (s *Storage) Keys(prefix string) ([]string, error) {
	var keys []string
	err := s.iterateArtifacts(kvPrefix, []byte(prefix), func(k, _ []byte) bool {
		keys = append(keys, prefix+string(k))
		return true
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
