package domain

// Rule 业务规则谓词，ID 作为隔离原因标识
type Rule struct {
	ID    string
	Check func(Record) bool
}

// Violation 校验失败的记录及首个失败规则
type Violation struct {
	Record Record
	RuleID string
}

// 规则标识。隔离条目与指标以此为失败原因。
const (
	RuleHighGTELow     = "ohlcv.high_gte_low"
	RuleHighGTEOpen    = "ohlcv.high_gte_open"
	RuleHighGTEClose   = "ohlcv.high_gte_close"
	RulePositivePrices = "ohlcv.positive_prices"
	RulePositivePrice  = "trades.positive_price"
	RulePositiveSize   = "trades.positive_size"
	RuleAskGTEBid      = "tbbo.ask_gte_bid"
	RuleKnownStatType  = "statistics.known_stat_type"

	// ReasonTransform 转换失败统一原因
	ReasonTransform = "transform_error"
)

// ohlcvRules K 线规则，按声明顺序求值
var ohlcvRules = []Rule{
	{ID: RuleHighGTELow, Check: func(r Record) bool {
		b := r.(OHLCVBar)
		return b.High.GreaterThanOrEqual(b.Low)
	}},
	{ID: RuleHighGTEOpen, Check: func(r Record) bool {
		b := r.(OHLCVBar)
		return b.High.GreaterThanOrEqual(b.Open)
	}},
	{ID: RuleHighGTEClose, Check: func(r Record) bool {
		b := r.(OHLCVBar)
		return b.High.GreaterThanOrEqual(b.Close)
	}},
	{ID: RulePositivePrices, Check: func(r Record) bool {
		b := r.(OHLCVBar)
		return b.Open.IsPositive() && b.High.IsPositive() && b.Low.IsPositive() && b.Close.IsPositive()
	}},
}

var tradeRules = []Rule{
	{ID: RulePositivePrice, Check: func(r Record) bool {
		return r.(TradeTick).Price.IsPositive()
	}},
	{ID: RulePositiveSize, Check: func(r Record) bool {
		return r.(TradeTick).Size.IsPositive()
	}},
}

var tbboRules = []Rule{
	// 买卖任一侧缺失时不比较
	{ID: RuleAskGTEBid, Check: func(r Record) bool {
		q := r.(QuoteTick)
		if !q.BidPrice.Valid || !q.AskPrice.Valid {
			return true
		}
		return q.AskPrice.Decimal.GreaterThanOrEqual(q.BidPrice.Decimal)
	}},
}

var statisticsRules = []Rule{
	{ID: RuleKnownStatType, Check: func(r Record) bool {
		return r.(StatRecord).StatType.Known()
	}},
}

// RulesFor 返回模式的有序规则列表。Definition 仅做结构校验，无业务规则。
func RulesFor(schema Schema) []Rule {
	switch {
	case schema.IsOHLCV():
		return ohlcvRules
	case schema == SchemaTrades:
		return tradeRules
	case schema == SchemaTBBO:
		return tbboRules
	case schema == SchemaStatistics:
		return statisticsRules
	default:
		return nil
	}
}

// Validate 将一批规范记录按模式规则划分为有效/无效两组。
// 记录间无交叉约束，首个失败规则即为隔离原因。
func Validate(records []Record, schema Schema) (valid []Record, invalid []Violation) {
	rules := RulesFor(schema)
	valid = make([]Record, 0, len(records))

	for _, record := range records {
		failed := ""
		for _, rule := range rules {
			if !rule.Check(record) {
				failed = rule.ID
				break
			}
		}
		if failed == "" {
			valid = append(valid, record)
		} else {
			invalid = append(invalid, Violation{Record: record, RuleID: failed})
		}
	}
	return valid, invalid
}
