package momo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign is hex(HMAC-SHA256(secret, raw)).
func Sign(secret, raw string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// equalSignature compares in constant time.
func equalSignature(a, b string) bool {
	return hmac.Equal([]byte(strings.ToLower(a)), []byte(strings.ToLower(b)))
}

type kv struct {
	k, v string
}

func canonical(pairs []kv) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.k)
		b.WriteByte('=')
		b.WriteString(p.v)
	}
	return b.String()
}

// Field order is fixed by the provider; the access key is part of the signed string.
func createCanonical(accessKey string, r createBody) string {
	return canonical([]kv{
		{"accessKey", accessKey},
		{"amount", r.Amount},
		{"extraData", r.ExtraData},
		{"ipnUrl", r.IPNURL},
		{"orderId", r.OrderID},
		{"orderInfo", r.OrderInfo},
		{"partnerCode", r.PartnerCode},
		{"redirectUrl", r.RedirectURL},
		{"requestId", r.RequestID},
		{"requestType", r.RequestType},
	})
}

// IPN canonical form; values are used exactly as received.
func callbackCanonical(accessKey string, cb Callback) string {
	return canonical([]kv{
		{"accessKey", accessKey},
		{"amount", cb.Amount.String()},
		{"extraData", cb.ExtraData},
		{"message", cb.Message},
		{"orderId", cb.OrderID},
		{"orderInfo", cb.OrderInfo},
		{"orderType", cb.OrderType},
		{"partnerCode", cb.PartnerCode},
		{"payType", cb.PayType},
		{"requestId", cb.RequestID},
		{"responseTime", cb.ResponseTime.String()},
		{"resultCode", cb.ResultCode.String()},
		{"transId", cb.TransID.String()},
	})
}
