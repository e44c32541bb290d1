package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"regexp"

	"github.com/YashLadlapure/meme-vault/internal/models"
)

func exampleRegister(serverURL, username string) models.AuthResponse {
	body, err := json.Marshal(models.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password1",
	})
	if err != nil {
		panic(err)
	}

	resp, err := http.Post(serverURL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	var result models.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		panic(err)
	}

	return result
}

func ExampleRouter_GetPing() {
	server, env := setupTestRouter()
	defer os.RemoveAll(env.mediaDir)
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL+"/ping", nil)
	if err != nil {
		panic(err)
	}

	client := &http.Client{}

	resp, err := client.Do(req)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	fmt.Println("Status Code:", resp.StatusCode)

	// Output:
	// Status Code: 200
}

func ExampleRouter_PostApiauthregister() {
	server, env := setupTestRouter()
	defer os.RemoveAll(env.mediaDir)
	defer server.Close()

	body, err := json.Marshal(models.RegisterRequest{
		Username: "doge",
		Email:    "doge@example.com",
		Password: "such-secret",
	})
	if err != nil {
		panic(err)
	}

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/auth/register", bytes.NewReader(body))
	if err != nil {
		panic(err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}

	resp, err := client.Do(req)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	var result models.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		panic(err)
	}

	fmt.Println("Status Code:", resp.StatusCode)
	fmt.Println("Success:", result.Success)
	fmt.Println("Username:", result.User.Username)
	fmt.Println("Has token:", result.Token != "")

	// Output:
	// Status Code: 201
	// Success: true
	// Username: doge
	// Has token: true
}

func ExampleRouter_PostApifolders() {
	server, env := setupTestRouter()
	defer os.RemoveAll(env.mediaDir)
	defer server.Close()

	session := exampleRegister(server.URL, "curator")

	req, err := http.NewRequest(
		http.MethodPost,
		server.URL+"/api/folders",
		bytes.NewReader([]byte(`{"name":"Reaction memes","description":"for chats"}`)),
	)
	if err != nil {
		panic(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+session.Token)

	client := &http.Client{}

	resp, err := client.Do(req)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	var result struct {
		Success bool          `json:"success"`
		Folder  models.Folder `json:"folder"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		panic(err)
	}

	fmt.Println("Status Code:", resp.StatusCode)
	fmt.Println("Name:", result.Folder.Name)
	fmt.Println("Color:", result.Folder.Color)

	// Output:
	// Status Code: 201
	// Name: Reaction memes
	// Color: #8b5cf6
}

func ExampleRouter_PostApimemes() {
	server, env := setupTestRouter()
	defer os.RemoveAll(env.mediaDir)
	defer server.Close()

	session := exampleRegister(server.URL, "uploader")

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("title", "Distracted boyfriend"); err != nil {
		panic(err)
	}
	part, err := form.CreateFormFile("image", "boyfriend.png")
	if err != nil {
		panic(err)
	}
	if _, err := part.Write(pngBytes); err != nil {
		panic(err)
	}
	if err := form.Close(); err != nil {
		panic(err)
	}

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/memes", &body)
	if err != nil {
		panic(err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+session.Token)

	client := &http.Client{}

	resp, err := client.Do(req)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(err)
	}

	re := regexp.MustCompile(`"imageUrl":"http://127\.0\.0\.1:\d+/media/[\w-]+\.png"`)

	fmt.Println("Status Code:", resp.StatusCode)
	fmt.Println("re.Match(b):", re.Match(b))

	// Output:
	// Status Code: 201
	// re.Match(b): true
}

func ExampleRouter_PostApimemeslike() {
	server, env := setupTestRouter()
	defer os.RemoveAll(env.mediaDir)
	defer server.Close()

	session := exampleRegister(server.URL, "liker")

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/memes/does-not-exist/like", nil)
	if err != nil {
		panic(err)
	}
	req.Header.Set("Authorization", "Bearer "+session.Token)

	client := &http.Client{}

	resp, err := client.Do(req)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(err)
	}

	fmt.Println("Status Code:", resp.StatusCode)
	fmt.Println(string(b))

	// Output:
	// Status Code: 404
	// {"error":"Meme not found"}
}
