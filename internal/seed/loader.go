// Package seed 在启动时把 initfile 目录中的 YAML 问答对导入知识库。
package seed

import (
	"context"
	"fmt"
	"io/fs"
	"mangrat-go/internal/category"
	"mangrat-go/internal/repository"
	"mangrat-go/internal/service"
	"mangrat-go/pkg/log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File 是一个种子文件的结构。
//
//	category: geography
//	entries:
//	  - question: capital of France
//	    answer: Paris
type File struct {
	Category string  `yaml:"category"`
	Entries  []Entry `yaml:"entries"`
}

// Entry 是一条问答对。
type Entry struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

// Result 汇总一次导入。
type Result struct {
	Files    int
	Imported int
	Skipped  int
	Failed   int
}

// Loader 通过 teach 流程导入种子数据，已存在的问题跳过。
type Loader struct {
	svc       service.KnowledgeService
	knowledge repository.KnowledgeRepository
}

// NewLoader 创建 Loader。
func NewLoader(svc service.KnowledgeService, knowledge repository.KnowledgeRepository) *Loader {
	return &Loader{svc: svc, knowledge: knowledge}
}

// Parse 解析一个种子文件的内容。
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid seed file: %w", err)
	}
	return &f, nil
}

// LoadDir 导入目录下所有 .yaml/.yml 文件。目录不存在时直接返回。
func (l *Loader) LoadDir(ctx context.Context, dir string) (Result, error) {
	var res Result
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("seed: 目录 '%s' 不存在或不可用，跳过初始化导入", dir)
		return res, nil
	}

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("seed: 读取文件失败: %s, err=%v", path, err)
			res.Failed++
			return nil
		}
		f, err := Parse(data)
		if err != nil {
			log.Warnf("seed: 解析文件失败: %s, err=%v", path, err)
			res.Failed++
			return nil
		}
		res.Files++
		l.loadFile(ctx, path, f, &res)
		return nil
	})
	if walkErr != nil {
		return res, fmt.Errorf("failed to walk seed dir %s: %w", dir, walkErr)
	}
	log.Infow("seed import finished", "dir", dir, "files", res.Files,
		"imported", res.Imported, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

func (l *Loader) loadFile(ctx context.Context, path string, f *File, res *Result) {
	partition := category.Resolve(f.Category)
	for _, e := range f.Entries {
		if e.Question == "" || e.Answer == "" {
			log.Warnf("seed: %s 中存在空的问题或答案，跳过", path)
			res.Failed++
			continue
		}
		// 幂等检查：已存在则跳过，不覆盖运营人员后来 teach 的答案
		_, found, err := l.knowledge.Find(ctx, partition, e.Question)
		if err != nil {
			log.Warnf("seed: 查询失败: %s, err=%v", e.Question, err)
			res.Failed++
			continue
		}
		if found {
			res.Skipped++
			continue
		}
		if _, err := l.svc.Teach(ctx, e.Question, e.Answer, partition.Name); err != nil {
			log.Warnf("seed: 导入失败: %s, err=%v", e.Question, err)
			res.Failed++
			continue
		}
		res.Imported++
	}
}
