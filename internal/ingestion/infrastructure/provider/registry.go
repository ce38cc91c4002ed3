// Package provider 维护按供应商名注册的抽取器工厂。
// 抽取器在任务配置阶段解析，未知供应商直接拒绝提交。
package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wyfcoding/marketingest/internal/ingestion/domain"
)

// Registry 类型化抽取器注册表
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]domain.Extractor
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]domain.Extractor)}
}

var _ domain.ExtractorRegistry = (*Registry)(nil)

// Register 注册供应商抽取器，同名覆盖
func (r *Registry) Register(name string, extractor domain.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[name] = extractor
}

// Resolve 按供应商名解析抽取器
func (r *Registry) Resolve(name string) (domain.Extractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	extractor, ok := r.extractors[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q, registered: %v", name, r.namesLocked())
	}
	return extractor, nil
}

// Names 返回已注册供应商名（有序）
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.extractors))
	for name := range r.extractors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
