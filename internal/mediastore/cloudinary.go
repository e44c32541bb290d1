// Package mediastore keeps uploaded image bytes outside the database.
// Cloudinary is the hosted store; LocalDisk serves development setups.
package mediastore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/YashLadlapure/meme-vault/internal/models"
)

const cloudinaryRequestTimeout = 60 * time.Second

// CloudinaryConfig holds the account credentials of the media host.
type CloudinaryConfig struct {
	BaseURL   string
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Cloudinary stores images through the Cloudinary upload API.
type Cloudinary struct {
	client *resty.Client
	config CloudinaryConfig
	now    func() time.Time
}

type cloudinaryUploadResult struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	PublicID  string `json:"public_id"`
}

type cloudinaryDestroyResult struct {
	Result string `json:"result"`
}

type cloudinaryError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewCloudinary creates the Cloudinary client.
func NewCloudinary(config CloudinaryConfig) (*Cloudinary, error) {
	if config.CloudName == "" || config.APIKey == "" || config.APISecret == "" {
		return nil, errors.New("in internal/mediastore/cloudinary.go/NewCloudinary(): cloud name, api key and api secret are required")
	}

	return &Cloudinary{
		client: resty.New().
			SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
			SetTimeout(cloudinaryRequestTimeout),
		config: config,
		now:    time.Now,
	}, nil
}

// Sign computes the Cloudinary request signature: the hex SHA-1 of the
// alphabetically sorted "key=value" pairs joined with "&", followed by the secret.
func Sign(params map[string]string, apiSecret string) string {
	keys := make([]string, 0, len(params))
	for key, value := range params {
		if value == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+params[key])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + apiSecret))

	return hex.EncodeToString(sum[:])
}

func (c *Cloudinary) signedForm(params map[string]string) map[string]string {
	params["timestamp"] = strconv.FormatInt(c.now().Unix(), 10)
	form := make(map[string]string, len(params)+2)
	for key, value := range params {
		form[key] = value
	}
	form["signature"] = Sign(params, c.config.APISecret)
	form["api_key"] = c.config.APIKey

	return form
}

func (c *Cloudinary) endpoint(action string) string {
	return fmt.Sprintf("/v1_1/%s/image/%s", c.config.CloudName, action)
}

func errorFromResponse(response *resty.Response) error {
	message := response.Status()
	if apiErr, ok := response.Error().(*cloudinaryError); ok && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
	}

	return fmt.Errorf("cloudinary responded with %d: %s", response.StatusCode(), message)
}

// Upload sends the image and returns its delivery URL and public id.
func (c *Cloudinary) Upload(
	ctx context.Context,
	filename string,
	_ string,
	file io.Reader,
) (*models.UploadedImage, error) {
	form := c.signedForm(map[string]string{"folder": c.config.Folder})

	response, err := c.client.R().
		SetContext(ctx).
		SetFileReader("file", filename, file).
		SetFormData(form).
		SetResult(&cloudinaryUploadResult{}).
		SetError(&cloudinaryError{}).
		Post(c.endpoint("upload"))
	if err != nil {
		return nil, fmt.Errorf("in internal/mediastore/cloudinary.go/Upload(): error while `Post()` calling: %w", err)
	}
	if response.IsError() {
		return nil, fmt.Errorf("in internal/mediastore/cloudinary.go/Upload(): %w", errorFromResponse(response))
	}

	result := response.Result().(*cloudinaryUploadResult)
	url := result.SecureURL
	if url == "" {
		url = result.URL
	}

	return &models.UploadedImage{URL: url, PublicID: result.PublicID}, nil
}

// Destroy removes the image. An image the host does not know is treated as removed.
func (c *Cloudinary) Destroy(ctx context.Context, publicID string) error {
	form := c.signedForm(map[string]string{"public_id": publicID})

	response, err := c.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&cloudinaryDestroyResult{}).
		SetError(&cloudinaryError{}).
		Post(c.endpoint("destroy"))
	if err != nil {
		return fmt.Errorf("in internal/mediastore/cloudinary.go/Destroy(): error while `Post()` calling: %w", err)
	}
	if response.IsError() {
		return fmt.Errorf("in internal/mediastore/cloudinary.go/Destroy(): %w", errorFromResponse(response))
	}

	switch result := response.Result().(*cloudinaryDestroyResult).Result; result {
	case "ok", "not found":
		return nil
	default:
		return fmt.Errorf("in internal/mediastore/cloudinary.go/Destroy(): unexpected result %q", result)
	}
}
