package crawlers

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/checarsner/crosspostit/internal/models"
	"golang.org/x/net/html/charset"
)

// Node 文档中的单个元素
type Node interface {
	// FindAll 返回所有匹配的后代,按文档顺序
	FindAll(selector string) []Node
	// FindOne 返回第一个匹配的后代,ok为false表示不存在
	FindOne(selector string) (Node, bool)
	// Text 元素文本(未裁剪)
	Text() string
	// Attr 属性值,ok为false表示属性不存在
	Attr(name string) (string, bool)
}

// Document 已解析的HTML文档
type Document interface {
	Node
}

// ParseDocument 解析HTML响应体
// 按Content-Type与meta声明的编码转换为UTF-8,无法识别时按原样解析
func ParseDocument(body []byte, contentType string) (Document, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		reader = bytes.NewReader(body)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, &models.HarvestError{Kind: models.ParseFault, Cause: err}
	}
	return &queryNode{sel: doc.Selection}, nil
}

// ParseHTML 解析HTML字符串,主要用于测试
func ParseHTML(html string) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &models.HarvestError{Kind: models.ParseFault, Cause: err}
	}
	return &queryNode{sel: doc.Selection}, nil
}

// queryNode 基于goquery的Node实现
type queryNode struct {
	sel *goquery.Selection
}

func (n *queryNode) FindAll(selector string) []Node {
	found := n.sel.Find(selector)
	nodes := make([]Node, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, &queryNode{sel: s})
	})
	return nodes
}

func (n *queryNode) FindOne(selector string) (Node, bool) {
	found := n.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, false
	}
	return &queryNode{sel: found}, true
}

func (n *queryNode) Text() string {
	return n.sel.Text()
}

func (n *queryNode) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

// textOf 查找选择器并返回裁剪后的文本,元素不存在或文本为空时ok为false
func textOf(n Node, selector string) (string, bool) {
	child, ok := n.FindOne(selector)
	if !ok {
		return "", false
	}
	text := strings.TrimSpace(child.Text())
	if text == "" {
		return "", false
	}
	return text, true
}
