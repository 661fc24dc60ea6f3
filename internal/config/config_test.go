package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hamed0406/keepwarm/internal/config"
)

func setenv(key, value string) {
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(os.Unsetenv, key)
}

var _ = Describe("Config", func() {
	Describe("Load", func() {
		Context("with no file and no environment", func() {
			It("should use defaults", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Addr).To(Equal("127.0.0.1:8080"))
				Expect(cfg.LogDir).To(Equal("logs"))
				Expect(cfg.LogLevel).To(Equal(config.LogLevelInfo))
				Expect(cfg.TargetsFile).To(Equal("targets.json"))
				Expect(cfg.HistorySize).To(Equal(100))
				Expect(cfg.SuccessPolicy).To(Equal(config.PolicyKeepAlive))
				Expect(cfg.DefaultTimeout()).To(Equal(10 * time.Second))
				Expect(cfg.ShutdownTimeout()).To(Equal(15 * time.Second))
				Expect(cfg.AllowedOrigins).To(BeEmpty())
				Expect(cfg.AdminRPM).To(Equal(120))
				Expect(cfg.AdminBurst).To(Equal(60))
			})
		})

		Context("with environment variables", func() {
			BeforeEach(func() {
				setenv("API_ADDR", ":9090")
				setenv("LOG_LEVEL", "DEBUG")
				setenv("HISTORY_SIZE", "25")
				setenv("SUCCESS_POLICY", "health")
				setenv("DEFAULT_TIMEOUT_MS", "1234")
				setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
			})

			It("should override defaults", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Addr).To(Equal(":9090"))
				Expect(cfg.LogLevel).To(Equal(config.LogLevelDebug))
				Expect(cfg.HistorySize).To(Equal(25))
				Expect(cfg.SuccessPolicy).To(Equal(config.PolicyHealth))
				Expect(cfg.DefaultTimeout()).To(Equal(1234 * time.Millisecond))
				Expect(cfg.AllowedOrigins).To(Equal([]string{"https://a.example.com", "https://b.example.com"}))
			})
		})

		Context("with a config file", func() {
			BeforeEach(func() {
				path := filepath.Join(GinkgoT().TempDir(), "keepwarm.yaml")
				content := `
api_addr: "0.0.0.0:7000"
history_size: 10
targets_file: "seed.yaml"
`
				Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
				setenv("CONFIG_FILE", path)
			})

			It("should read values from the file", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Addr).To(Equal("0.0.0.0:7000"))
				Expect(cfg.HistorySize).To(Equal(10))
				Expect(cfg.TargetsFile).To(Equal("seed.yaml"))
			})

			It("should let the environment win over the file", func() {
				setenv("HISTORY_SIZE", "7")
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.HistorySize).To(Equal(7))
			})
		})

		Context("with a missing config file", func() {
			It("should fail", func() {
				setenv("CONFIG_FILE", filepath.Join(GinkgoT().TempDir(), "nope.yaml"))
				_, err := config.Load()
				Expect(err).To(HaveOccurred())
			})
		})

		Context("with invalid values", func() {
			It("should reject an unknown success policy", func() {
				setenv("SUCCESS_POLICY", "strict")
				_, err := config.Load()
				Expect(err).To(MatchError(ContainSubstring("SuccessPolicy")))
			})

			It("should reject a malformed address", func() {
				setenv("API_ADDR", "localhost")
				_, err := config.Load()
				Expect(err).To(MatchError(ContainSubstring("Addr")))
			})

			It("should reject a zero history size", func() {
				setenv("HISTORY_SIZE", "0")
				_, err := config.Load()
				Expect(err).To(MatchError(ContainSubstring("HistorySize")))
			})
		})
	})

	Describe("LoadTargets", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		write := func(name, content string) string {
			path := filepath.Join(dir, name)
			Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
			return path
		}

		It("should return no targets for a missing file", func() {
			entries, err := config.LoadTargets(filepath.Join(dir, "targets.json"))
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})

		It("should parse a JSON list", func() {
			path := write("targets.json", `[
  {"url": "https://svc.example.com/keepalive", "min_interval_ms": 1000, "max_interval_ms": 2000, "timeout_ms": 500, "auto_start": true},
  {"url": "https://other.example.com", "method": "HEAD", "min_interval_ms": 5000, "max_interval_ms": 5000}
]`)
			entries, err := config.LoadTargets(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))

			first := entries[0].Spec()
			Expect(first.URL).To(Equal("https://svc.example.com/keepalive"))
			Expect(first.MinIntervalMS).To(BeEquivalentTo(1000))
			Expect(first.MaxIntervalMS).To(BeEquivalentTo(2000))
			Expect(first.TimeoutMS).To(BeEquivalentTo(500))
			Expect(entries[0].AutoStart).To(BeTrue())

			Expect(entries[1].Spec().Method).To(Equal("HEAD"))
			Expect(entries[1].AutoStart).To(BeFalse())
		})

		It("should parse YAML and convert minute delays", func() {
			path := write("targets.yaml", `
- url: https://legacy.example.com
  min_delay: 5
  max_delay: 10
`)
			entries, err := config.LoadTargets(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			spec := entries[0].Spec()
			Expect(spec.MinIntervalMS).To(BeEquivalentTo(5 * 60_000))
			Expect(spec.MaxIntervalMS).To(BeEquivalentTo(10 * 60_000))
		})

		It("should fail on malformed content", func() {
			path := write("targets.json", `{"url": [`)
			_, err := config.LoadTargets(path)
			Expect(err).To(HaveOccurred())
		})
	})
})
