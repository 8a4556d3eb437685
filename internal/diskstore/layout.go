package diskstore

import "path/filepath"

// paths is the sole producer of filesystem paths inside a cache root: the
// two-level shard prefix (characters 0..2 and 2..4 of the combined hash)
// followed by the hash itself, holding the object's three files. It
// performs no I/O.
func paths(root, hash string) (dir, body, meta, hdr string) {
	dir = filepath.Join(root, hash[0:2], hash[2:4], hash)
	body = filepath.Join(dir, "body")
	meta = filepath.Join(dir, "meta")
	hdr = filepath.Join(dir, "hdr")
	return dir, body, meta, hdr
}
