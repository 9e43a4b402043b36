package publication

import (
	"crypto/md5"  // #nosec G501 - Maven repositories require .md5 companions
	"crypto/sha1" // #nosec G505 - Maven repositories require .sha1 companions
	"encoding/hex"
)

// checksums returns the companion checksum files Maven clients expect next
// to every published file.
func checksums(f File) []File {
	md5sum := md5.Sum(f.Data)   // #nosec G401
	sha1sum := sha1.Sum(f.Data) // #nosec G401
	return []File{
		{Name: f.Name + ".sha1", Kind: "checksum", MediaType: "text/plain", Data: []byte(hex.EncodeToString(sha1sum[:]))},
		{Name: f.Name + ".md5", Kind: "checksum", MediaType: "text/plain", Data: []byte(hex.EncodeToString(md5sum[:]))},
	}
}

// withChecksums interleaves each file with its checksum companions.
func withChecksums(files []File) []File {
	out := make([]File, 0, len(files)*3)
	for _, f := range files {
		out = append(out, f)
		out = append(out, checksums(f)...)
	}
	return out
}
