package platform

import (
	"sort"
	"strings"

	"github.com/hitoshi/socialsync/internal/model"
)

// Registry はプラットフォーム識別子からアダプタへの不変マップ。
// 起動時にNewRegistryで構築された後は変更されないため、ロックなしで並行参照できる。
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry は指定されたアダプタ群からレジストリを構築する。
// キーはAdapter.Platform()を小文字化したもの。同一キーは後勝ち。
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[strings.ToLower(a.Platform())] = a
	}
	return &Registry{adapters: m}
}

// Resolve はプラットフォーム識別子からアダプタを検索する。
// 照合は大文字小文字を区別しない。未登録の場合はunsupported_platformエラーを返す。
func (r *Registry) Resolve(platform string) (Adapter, *model.SyncError) {
	a, ok := r.adapters[strings.ToLower(platform)]
	if !ok {
		return nil, model.NewUnsupportedPlatformError(platform)
	}
	return a, nil
}

// Platforms は登録済みプラットフォーム識別子の一覧をソート済みで返す。
func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
