package telephony

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/ringlink/internal/config"
	"github.com/mbeoliero/ringlink/internal/entity"
	"github.com/mbeoliero/ringlink/pkg/constant"
	"github.com/mbeoliero/ringlink/pkg/metrics"
	"github.com/mbeoliero/ringlink/pkg/phone"
)

const (
	actionDailback = "callDailBack"
	actionCdr      = "getCdrByResId"

	ytxTimeLayout   = "20060102150405"
	ytxUnknownError = "未知异常"
)

// YTXClient is the CallGateway of the YTX double-ring API
type YTXClient struct {
	cfg        config.YTXConfig
	region     string
	httpClient *client.Client
	now        func() time.Time
}

var _ CallGateway = (*YTXClient)(nil)

// NewYTXClient creates a YTX client
func NewYTXClient(cfg config.YTXConfig, region string) (*YTXClient, error) {
	httpClient, err := client.NewClient(
		client.WithDialTimeout(cfg.RequestTimeout),
		client.WithClientReadTimeout(cfg.RequestTimeout),
		client.WithWriteTimeout(cfg.RequestTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}
	return &YTXClient{
		cfg:        cfg,
		region:     region,
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

// Name returns the provider name stored with request ids
func (c *YTXClient) Name() string {
	return constant.ProviderYTX
}

type dailbackRequest struct {
	Src        string `json:"src"`
	Dst        string `json:"dst"`
	CustomParm string `json:"customParm"`
	AppId      string `json:"appid"`
	Action     string `json:"action"`
	SrcClid    string `json:"srcclid"`
	DstClid    string `json:"dstclid"`
	SrcTimeout int    `json:"srctimeout"`
	DstTimeout int    `json:"dsttimeout"`
	Credit     int    `json:"credit"`
}

type dailbackResponse struct {
	StatusCode string `json:"statusCode"`
	StatusMsg  string `json:"statusMsg"`
	RequestId  string `json:"requestId"`
}

type cdrRequest struct {
	Limit     int    `json:"limit"`
	LastResId string `json:"lastresid"`
	AppId     string `json:"appid"`
	Action    string `json:"action"`
	Fid       string `json:"fid"`
}

// PlaceCall starts a double-ring call, numbers are dialled in national form
func (c *YTXClient) PlaceCall(ctx context.Context, callerNumber, calledNumber, correlationId string) (string, error) {
	src, err := phone.National(callerNumber, c.region)
	if err != nil {
		return "", fmt.Errorf("caller number: %w", err)
	}
	dst, err := phone.National(calledNumber, c.region)
	if err != nil {
		return "", fmt.Errorf("called number: %w", err)
	}

	body := dailbackRequest{
		Src:        src,
		Dst:        dst,
		CustomParm: correlationId,
		AppId:      c.cfg.AppId,
		Action:     actionDailback,
		SrcClid:    c.cfg.ShowNum,
		DstClid:    c.cfg.ShowNum,
		SrcTimeout: c.cfg.SrcTimeout,
		DstTimeout: c.cfg.DstTimeout,
		Credit:     c.cfg.Credit,
	}
	path := fmt.Sprintf("/201512/sid/%s/call/DailbackCall.wx", c.cfg.AccountSid)

	var resp dailbackResponse
	if err := c.post(ctx, actionDailback, path, body, &resp); err != nil {
		return "", err
	}
	if resp.StatusCode != "0" || resp.RequestId == "" {
		msg := resp.StatusMsg
		if msg == "" {
			msg = resp.StatusCode
		}
		if msg == "" {
			msg = ytxUnknownError
		}
		log.CtxWarn(ctx, "ytx place call rejected: call_id=%s, code=%s, msg=%s", correlationId, resp.StatusCode, resp.StatusMsg)
		return "", &ProviderError{Code: resp.StatusCode, Msg: msg}
	}

	log.CtxInfo(ctx, "ytx place call accepted: call_id=%s, req_id=%s", correlationId, resp.RequestId)
	return resp.RequestId, nil
}

// FetchCDR fetches the detail record of one request id
func (c *YTXClient) FetchCDR(ctx context.Context, reqId string) (*entity.CDR, bool, error) {
	body := cdrRequest{
		Limit:     0,
		LastResId: reqId,
		AppId:     c.cfg.AppId,
		Action:    actionCdr,
		Fid:       "4",
	}
	path := fmt.Sprintf("/201512/sid/%s/call/CallCdr.wx", c.cfg.AccountSid)

	var resp CDRList
	if err := c.post(ctx, actionCdr, path, body, &resp); err != nil {
		return nil, false, err
	}
	if len(resp.CDR) == 0 || resp.CDR[0].RequestId != reqId {
		log.CtxDebug(ctx, "ytx cdr not ready: req_id=%s, got=%d", reqId, len(resp.CDR))
		return nil, false, nil
	}

	cdr, err := resp.CDR[0].ToCDR()
	if err != nil {
		return nil, false, err
	}
	return &cdr, true, nil
}

// sign returns the Sign query value and the Authorization header
func (c *YTXClient) sign() (string, string) {
	ts := c.now().In(entity.LocalZone).Format(ytxTimeLayout)
	sum := md5.Sum([]byte(c.cfg.AccountSid + c.cfg.AuthToken + ts))
	auth := base64.StdEncoding.EncodeToString([]byte(c.cfg.AccountSid + "|" + ts))
	return hex.EncodeToString(sum[:]), auth
}

func (c *YTXClient) post(ctx context.Context, action, path string, body, result interface{}) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordGateway(action, err == nil, time.Since(start))
	}()

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	signature, auth := c.sign()
	req := &protocol.Request{}
	resp := &protocol.Response{}

	req.SetMethod(consts.MethodPost)
	req.SetRequestURI(c.cfg.BaseURL + path + "?Sign=" + signature)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json;charset=utf-8")
	req.Header.Set("Authorization", auth)
	req.SetBody(jsonBody)

	if err = c.httpClient.DoTimeout(ctx, req, resp, c.cfg.RequestTimeout); err != nil {
		log.CtxError(ctx, "ytx request failed: action=%s, err=%v", action, err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	if code := resp.StatusCode(); code != consts.StatusOK {
		log.CtxError(ctx, "ytx request failed: action=%s, status=%d", action, code)
		return fmt.Errorf("unexpected http status %d", code)
	}
	if err = json.Unmarshal(resp.Body(), result); err != nil {
		log.CtxError(ctx, "ytx response invalid: action=%s, err=%v", action, err)
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
