package device_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"net/http/httptest"
	"time"

	"github.com/allsmog/zkekyc-go/pkg/crypto/curve"
	"github.com/allsmog/zkekyc-go/pkg/device"
	"github.com/allsmog/zkekyc-go/pkg/jwt"
	"github.com/allsmog/zkekyc-go/pkg/storage"
	"github.com/allsmog/zkekyc-go/pkg/transport/httpapi"
	"github.com/allsmog/zkekyc-go/pkg/vault"
	"github.com/allsmog/zkekyc-go/pkg/verifier"
)

// Example enrolls a device with a local verifier and re-authenticates.
func Example() {
	crv := curve.NewSecp256k1()

	// verifier side
	key, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	signer, _ := jwt.NewES256Signer(key, "example")
	registry := storage.NewMemoryStore(time.Minute)
	defer registry.Close()
	handlers := verifier.NewHandlers(registry, crv, signer, verifier.Config{
		Issuer: "example", Audience: "example", TokenTTL: time.Minute,
	})
	srv := httptest.NewServer(verifier.NewRouter(verifier.RouterConfig{
		Handlers:      handlers,
		TokenVerifier: jwt.NewVerifier(signer.JWKS(), "example", "example"),
	}))
	defer srv.Close()

	// device side
	api, err := httpapi.New(srv.URL)
	if err != nil {
		fmt.Println(err)
		return
	}
	v := vault.New(vault.NewMemoryKeyring(vault.SuiteAESGCM))
	client := device.NewClient(crv, v, storage.NewMemorySecretStore(), api)

	ctx := context.Background()
	_, enrolled, err := client.Enroll(ctx, &device.EnrollmentRequest{
		Facts: device.IdentityFacts{
			IDNumber: "001099012345",
			FullName: "Hoang Thi E",
			DOB:      "05/05/1995",
		},
		Approval: 1,
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("enrolled:", enrolled.Accepted)

	for i := 0; i < 2; i++ {
		res, attempt, err := client.Login(ctx)
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Println(attempt.State(), res.SessionToken != "")
	}

	// Output:
	// enrolled: true
	// accepted true
	// accepted true
}
