package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// timeNowMillis is overridden in tests for deterministic timestamps.
var timeNowMillis = func() int64 { return time.Now().UnixMilli() }

// SignParams builds the sorted, URL-encoded query string for params (with a
// timestamp and recvWindow appended) and its HMAC-SHA256 signature over
// secret, the scheme every signed /fapi endpoint uses.
func SignParams(params map[string]string, recvWindowMs int, secret string) (query string, signature string) {
	if recvWindowMs <= 0 {
		recvWindowMs = 5000
	}
	all := make(map[string]string, len(params)+2)
	for k, v := range params {
		all[k] = v
	}
	all["timestamp"] = strconv.FormatInt(timeNowMillis(), 10)
	all["recvWindow"] = strconv.Itoa(recvWindowMs)

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vals := url.Values{}
	for _, k := range keys {
		vals.Set(k, all[k])
	}
	query = vals.Encode()

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(query))
	signature = hex.EncodeToString(mac.Sum(nil))
	return query, signature
}
