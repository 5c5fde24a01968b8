package models

// 字段缺失时使用的占位文本
const (
	PlaceholderTitle       = "No title"
	PlaceholderPrice       = "No price"
	PlaceholderLocation    = "No location"
	PlaceholderPostDate    = "No date"
	PlaceholderDescription = "Description not available"
)

// ListingFields 输出字段顺序(CSV列顺序与JSON键集合)
var ListingFields = []string{
	"item_id",
	"title",
	"price",
	"description",
	"location",
	"image_url",
	"post_date",
	"item_url",
}

// ListingRecord 单条商品记录
// 除ItemID和ImageURL外,所有字段总是有值(缺失时为占位文本)
type ListingRecord struct {
	ItemID      *string `json:"item_id"`     // 从商品链接路径解析的ID,可能为空
	Title       string  `json:"title"`       // 标题
	Price       string  `json:"price"`       // 价格
	Description string  `json:"description"` // 详情页描述
	Location    string  `json:"location"`    // 位置
	ImageURL    *string `json:"image_url"`   // 图片URL,为空时不下载图片
	PostDate    string  `json:"post_date"`   // 发布日期
	ItemURL     string  `json:"item_url"`    // 详情页绝对URL
}

// HasImage 是否有可下载的图片
func (r ListingRecord) HasImage() bool {
	return r.ImageURL != nil && *r.ImageURL != ""
}

// IDOrEmpty 返回ItemID,为nil时返回空字符串
func (r ListingRecord) IDOrEmpty() string {
	return deref(r.ItemID)
}

// ImageOrEmpty 返回ImageURL,为nil时返回空字符串
func (r ListingRecord) ImageOrEmpty() string {
	return deref(r.ImageURL)
}

// Row 按ListingFields顺序返回字段值
func (r ListingRecord) Row() []string {
	return []string{
		r.IDOrEmpty(),
		r.Title,
		r.Price,
		r.Description,
		r.Location,
		r.ImageOrEmpty(),
		r.PostDate,
		r.ItemURL,
	}
}

// RecordFromRow 从CSV行还原记录,空字符串视为nil
func RecordFromRow(row []string) (ListingRecord, error) {
	if len(row) != len(ListingFields) {
		return ListingRecord{}, &HarvestError{
			Kind:  ParseFault,
			Cause: errRowWidth(len(row)),
		}
	}
	return ListingRecord{
		ItemID:      StringPtr(row[0]),
		Title:       row[1],
		Price:       row[2],
		Description: row[3],
		Location:    row[4],
		ImageURL:    StringPtr(row[5]),
		PostDate:    row[6],
		ItemURL:     row[7],
	}, nil
}

// StringPtr 非空字符串返回指针,空字符串返回nil
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
