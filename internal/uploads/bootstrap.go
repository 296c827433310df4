package uploads

import (
	"context"
	"strings"

	"github.com/sbilibin2017/gw-book-platform/internal/logger"
	"github.com/sbilibin2017/gw-book-platform/internal/storage"
)

const defaultAvatarSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="200" height="200" viewBox="0 0 200 200">
<rect width="200" height="200" fill="#e5e7eb"/>
<circle cx="100" cy="78" r="38" fill="#9ca3af"/>
<path d="M30 180c8-40 38-62 70-62s62 22 70 62z" fill="#9ca3af"/>
</svg>
`

const defaultCoverSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="300" height="450" viewBox="0 0 300 450">
<rect width="300" height="450" fill="#1f2937"/>
<rect x="30" y="30" width="240" height="390" fill="none" stroke="#9ca3af" stroke-width="4"/>
<text x="150" y="235" font-family="sans-serif" font-size="28" fill="#e5e7eb" text-anchor="middle">No Cover</text>
</svg>
`

var placeholders = map[string]string{
	"uploads/default-avatar.svg": defaultAvatarSVG,
	"uploads/default-cover.svg":  defaultCoverSVG,
}

// Bootstrap stores the default avatar and cover if they are missing.
// Upload directories are created on first write.
func Bootstrap(ctx context.Context, store storage.Storage) error {
	for key, body := range placeholders {
		ok, err := store.Exists(ctx, key)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if err := store.Put(ctx, key, strings.NewReader(body), int64(len(body)), "image/svg+xml"); err != nil {
			return err
		}
		logger.Log.Infow("placeholder created", "key", key)
	}
	return nil
}
