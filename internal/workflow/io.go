package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// ExportFormat 导出格式
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatYAML ExportFormat = "yaml"
)

// exportSchemaVersion 导出文件格式版本
const exportSchemaVersion = "1.0"

// WorkflowExportData 工作流导出数据
type WorkflowExportData struct {
	Version    string             `json:"version" yaml:"version"`
	ExportedAt string             `json:"exportedAt" yaml:"exportedAt"`
	Workflow   WorkflowExportItem `json:"workflow" yaml:"workflow"`
}

// WorkflowExportItem 导出的工作流项（只包含可编辑定义）
type WorkflowExportItem struct {
	Name           string          `json:"name" yaml:"name"`
	Description    string          `json:"description" yaml:"description"`
	Steps          []Step          `json:"steps" yaml:"steps"`
	ParallelGroups []ParallelGroup `json:"parallel_groups,omitempty" yaml:"parallel_groups,omitempty"`
	Triggers       []Trigger       `json:"triggers,omitempty" yaml:"triggers,omitempty"`
}

// BatchExportData 批量导出数据
type BatchExportData struct {
	Version    string               `json:"version" yaml:"version"`
	ExportedAt string               `json:"exportedAt" yaml:"exportedAt"`
	Count      int                  `json:"count" yaml:"count"`
	Workflows  []WorkflowExportItem `json:"workflows" yaml:"workflows"`
}

// WorkflowIO 工作流导入导出服务
type WorkflowIO struct {
	svc *Service
}

// NewWorkflowIO 创建工作流 IO 服务
func NewWorkflowIO(svc *Service) *WorkflowIO {
	return &WorkflowIO{svc: svc}
}

// ExportResult 导出结果
type ExportResult struct {
	Data        []byte
	Filename    string
	ContentType string
}

// ParseFormat 解析格式参数，默认 JSON
func ParseFormat(s string) (ExportFormat, error) {
	switch s {
	case "", string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: 不支持的格式 %q", ErrValidation, s)
	}
}

// Export 导出单个工作流
func (io *WorkflowIO) Export(ctx context.Context, id string, format ExportFormat) (*ExportResult, error) {
	wf, err := io.svc.GetDefinition(ctx, id)
	if err != nil {
		return nil, err
	}

	exportData := WorkflowExportData{
		Version:    exportSchemaVersion,
		ExportedAt: time.Now().Format(time.RFC3339),
		Workflow:   exportItem(wf),
	}
	return marshalExport(exportData, format, wf.Name)
}

// BatchExport 批量导出工作流
func (io *WorkflowIO) BatchExport(ctx context.Context, ids []string, format ExportFormat) (*ExportResult, error) {
	items := make([]WorkflowExportItem, 0, len(ids))
	for _, id := range ids {
		wf, err := io.svc.GetDefinition(ctx, id)
		if err != nil {
			return nil, err
		}
		items = append(items, exportItem(wf))
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: 未找到工作流", ErrNotFound)
	}

	exportData := BatchExportData{
		Version:    exportSchemaVersion,
		ExportedAt: time.Now().Format(time.RFC3339),
		Count:      len(items),
		Workflows:  items,
	}
	return marshalExport(exportData, format, "workflows_batch")
}

func exportItem(wf *Workflow) WorkflowExportItem {
	return WorkflowExportItem{
		Name:           wf.Name,
		Description:    wf.Description,
		Steps:          wf.Steps,
		ParallelGroups: wf.ParallelGroups,
		Triggers:       wf.Triggers,
	}
}

var unsafeFilename = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// marshalExport 序列化数据
func marshalExport(data any, format ExportFormat, name string) (*ExportResult, error) {
	var (
		bytes       []byte
		err         error
		ext         string
		contentType string
	)

	switch format {
	case FormatYAML:
		bytes, err = yaml.Marshal(data)
		ext = "yaml"
		contentType = "application/x-yaml"
	default:
		bytes, err = json.MarshalIndent(data, "", "  ")
		ext = "json"
		contentType = "application/json"
	}

	if err != nil {
		return nil, fmt.Errorf("序列化失败: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	return &ExportResult{
		Data:        bytes,
		Filename:    fmt.Sprintf("%s_%s.%s", unsafeFilename.ReplaceAllString(name, "_"), timestamp, ext),
		ContentType: contentType,
	}, nil
}

// ImportRequest 导入请求
type ImportRequest struct {
	Data       []byte
	Format     ExportFormat
	NamePrefix string // 名称前缀（用于区分导入的工作流）
}

// ImportResult 导入结果
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
	IDs      []string `json:"ids"`
}

// Import 导入工作流，导入结果一律为 draft，需要重新激活
func (io *WorkflowIO) Import(ctx context.Context, req *ImportRequest) (*ImportResult, error) {
	var batchData BatchExportData
	var singleData WorkflowExportData
	var items []WorkflowExportItem

	// 根据格式解析
	var unmarshal func([]byte, any) error
	if req.Format == FormatYAML {
		unmarshal = yaml.Unmarshal
	} else {
		unmarshal = json.Unmarshal
	}

	// 尝试批量格式
	if err := unmarshal(req.Data, &batchData); err == nil && len(batchData.Workflows) > 0 {
		items = batchData.Workflows
	} else if err := unmarshal(req.Data, &singleData); err == nil && singleData.Workflow.Name != "" {
		items = []WorkflowExportItem{singleData.Workflow}
	} else {
		return nil, fmt.Errorf("%w: 无法解析导入数据", ErrValidation)
	}

	result := &ImportResult{
		IDs: make([]string, 0),
	}

	for _, item := range items {
		if len(item.Steps) == 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: 工作流定义为空", item.Name))
			result.Skipped++
			continue
		}

		// 处理名称
		name := item.Name
		if req.NamePrefix != "" {
			name = req.NamePrefix + "_" + name
		}

		wf, err := io.svc.Create(ctx, &CreateRequest{
			Name:           name,
			Description:    item.Description,
			Steps:          item.Steps,
			ParallelGroups: item.ParallelGroups,
			Triggers:       item.Triggers,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: 创建失败 - %v", item.Name, err))
			result.Skipped++
			continue
		}

		result.IDs = append(result.IDs, wf.ID)
		result.Imported++
	}

	return result, nil
}

// definitionYAML 定义的规范化 YAML 表示，用于生成差异
func definitionYAML(wf *Workflow) (string, error) {
	out, err := yaml.Marshal(exportItem(wf))
	if err != nil {
		return "", fmt.Errorf("序列化工作流定义失败: %w", err)
	}
	return string(out), nil
}
