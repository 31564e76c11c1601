package feed

import "time"

// 原始文件欄位的取值小工具。Firestore 會把數字還成 int64、
// 時間還成 time.Time；這裡統一吸收型別差異。

func str(data map[string]any, key string) string {
	if s, ok := data[key].(string); ok {
		return s
	}
	return ""
}

func strPtr(data map[string]any, key string) *string {
	if s, ok := data[key].(string); ok && s != "" {
		return &s
	}
	return nil
}

func num(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func ts(data map[string]any, key string) time.Time {
	if t, ok := data[key].(time.Time); ok {
		return t
	}
	return time.Time{}
}
