// Package crawlers 提供商品主页与详情页的获取和解析
//
// # 概述
//
// crawlers包负责单个页面级别的工作: 发起请求、解析HTML、从商品卡片中提取字段、
// 获取详情页描述。翻页与终止判断由core.Harvester负责。
//
// # 核心组件
//
// ## Fetcher
//
// 页面获取接口,两种实现:
//   - StaticFetcher: 基于Colly的HTTP请求,支持br/deflate解压
//   - BrowserFetcher: 基于go-rod的浏览器渲染,用于前端渲染的主页
//
// 非2xx响应返回Response和UnexpectedStatus错误,网络失败返回TransportFault错误。
// 可通过包装器叠加重试与限速:
//
//	var f Fetcher = NewStaticFetcher(StaticFetcherConfig{Timeout: 30 * time.Second}, headerManager)
//	f = NewRetryFetcher(f, DefaultRetry)
//	f = NewRateLimitedFetcher(f, 2)
//
// ## CardExtractor
//
// 从单张商品卡片中提取字段。商品链接是唯一必需字段,缺失时跳过该卡片;
// 其余字段各自独立,缺失时使用占位值,图片缺失时为nil。
//
//	extractor, _ := NewCardExtractor("https://offerup.com", models.DefaultSelectors())
//	for _, card := range extractor.Cards(doc) {
//	    result := extractor.Extract(card)
//	    if result.Outcome == OutcomeSkipped {
//	        continue
//	    }
//	}
//
// ## DetailFetcher
//
// 请求详情页并提取描述,主选择器无内容时使用备用选择器。
// 任何故障都转换为占位值 "Description not available",不会返回错误。
//
// ## Delayer
//
// 请求间隔控制。RandomDelay在区间内均匀随机等待,NoDelay用于测试。
//
// # 错误类型
//
// 所有获取错误都是 *models.HarvestError,可通过 models.KindOf 与 models.IsRetryable 判断。
// 只有TransportFault会被RetryFetcher重试。
package crawlers
