package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/astei/anvil2snbt/nbt"
)

// NbtFileInfo summarises a standalone NBT file.
type NbtFileInfo struct {
	Path         string    `json:"path"`
	FileSize     int64     `json:"fileSize"`
	Compression  string    `json:"compression"`
	RootName     string    `json:"rootName"`
	RootKeys     []string  `json:"rootKeys"`
	TagCount     int       `json:"tagCount"`
	DataVersion  int       `json:"dataVersion,omitempty"`
	LastModified time.Time `json:"lastModified"`
}

// ConvertNbtToSnbt renders the NBT file at path as SNBT. The root name and
// the file's compression are kept in the comment header so that the text
// converts back to the same file.
func (s *Service) ConvertNbtToSnbt(path string) (string, error) {
	nt, c, err := nbt.ReadFile(path)
	if err != nil {
		return "", err
	}
	var h nbt.Header
	if nt.Name != "" {
		h.Set(KeyRootName, strconv.Quote(nt.Name))
	}
	h.Set(KeyCompression, c.String())
	return h.String() + s.render(nt.Root) + "\n", nil
}

func (s *Service) render(t nbt.Tag) string {
	if s.indent == "" {
		return nbt.ToSNBT(t)
	}
	return nbt.ToSNBTIndent(t, s.indent)
}

// ConvertSnbtToNbt parses text and writes it as an NBT file at outPath. The
// header's root name and compression are honoured; without a compression
// line .dat files are gzipped and everything else is written raw.
func (s *Service) ConvertSnbtToNbt(text, outPath string) error {
	header, body := nbt.ParseHeader(text)
	root, err := nbt.ParseSNBTCompound(body)
	if err != nil {
		return err
	}
	name, err := rootName(header)
	if err != nil {
		return err
	}
	c := nbt.CompressionNone
	if strings.EqualFold(filepath.Ext(outPath), ".dat") {
		c = nbt.CompressionGzip
	}
	if v, ok := header.Get(KeyCompression); ok {
		if c, err = nbt.ParseCompression(v); err != nil {
			return err
		}
	}
	return nbt.WriteFile(outPath, &nbt.NamedTag{Name: name, Root: root}, c)
}

func rootName(h nbt.Header) (string, error) {
	v, ok := h.Get(KeyRootName)
	if !ok {
		return "", nil
	}
	name, err := strconv.Unquote(v)
	if err != nil {
		return "", fmt.Errorf("bad %s header %s: %w", KeyRootName, v, err)
	}
	return name, nil
}

// IsValidNbtFile reports whether path decodes as an NBT file.
func (s *Service) IsValidNbtFile(path string) bool {
	_, _, err := nbt.ReadFile(path)
	return err == nil
}

func (s *Service) GetNbtFileInfo(path string) (*NbtFileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	nt, c, err := nbt.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info := &NbtFileInfo{
		Path:         path,
		FileSize:     fi.Size(),
		Compression:  c.String(),
		RootName:     nt.Name,
		RootKeys:     nt.Root.Keys(),
		TagCount:     nbt.Count(nt.Root),
		LastModified: fi.ModTime(),
	}
	if v, ok := dataVersion(nt.Root); ok {
		info.DataVersion = v
	}
	return info, nil
}

// dataVersion finds DataVersion at the root or, as in level.dat, under Data.
func dataVersion(root *nbt.Compound) (int, bool) {
	for _, c := range []*nbt.Compound{root, child(root, "Data")} {
		if c == nil {
			continue
		}
		if v, ok := c.Get("DataVersion"); ok {
			if n, ok := v.(nbt.Int); ok {
				return int(n), true
			}
		}
	}
	return 0, false
}

func child(c *nbt.Compound, key string) *nbt.Compound {
	v, ok := c.Get(key)
	if !ok {
		return nil
	}
	sub, _ := v.(*nbt.Compound)
	return sub
}
