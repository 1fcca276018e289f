package rembg

import (
	"bytes"
	"context"
	"image"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/chaos-io/rembg-batch/logger"
	"github.com/chaos-io/rembg-batch/util"
	nhttp "github.com/chaos-io/rembg-batch/util/http"
)

const (
	removePath           = "/api/remove"
	defaultRemoteTimeout = 2 * time.Minute
)

// Remote 调用 rembg 兼容的 HTTP 服务 (rembg s)
//
//	curl -X POST "$BASE_URL/api/remove" \
//	  -F "file=@my_image.png" \
//	  -F "model=u2net" -o out.png
type Remote struct {
	baseURL string
	model   string
	timeout time.Duration
	cli     nhttp.IClient
}

func NewRemote(baseURL, model string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		timeout: timeout,
		cli:     nhttp.NewHTTPClient(),
	}
}

func (r *Remote) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	body, contentType, err := r.form(img)
	if err != nil {
		return nil, err
	}

	var out []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: r.baseURL + removePath,
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": contentType},
		Body:       body,
		Response:   &out,
		Timeout:    r.timeout,
	}
	if err := r.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, errors.Wrap(err, "remote remove")
	}

	logger.Entry(ctx).WithField("bytes", len(out)).Debug("get the response")

	res, err := util.DecodeImage(bytes.NewReader(out))
	if err != nil {
		return nil, errors.Wrap(err, "remote response")
	}
	return res, nil
}

func (r *Remote) form(img image.Image) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, "", errors.Wrap(err, "create form file")
	}
	if err := util.EncodePNG(part, img); err != nil {
		return nil, "", err
	}

	if r.model != "" {
		_ = writer.WriteField("model", r.model)
	}
	if err := writer.Close(); err != nil {
		return nil, "", errors.Wrap(err, "close multipart writer")
	}
	return body, writer.FormDataContentType(), nil
}
