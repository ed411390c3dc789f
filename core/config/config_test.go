package config_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/icagency/secretary/core/config"
)

var _ = Describe("Load", func() {
	BeforeEach(func() {
		GinkgoT().Setenv("SECRETARY_ENV", "test")
		GinkgoT().Setenv("REDIS_URL", "redis://localhost:6379/0")
		GinkgoT().Setenv("LLM_API_KEY", "key")
	})

	It("loads defaults", func() {
		cfg, err := config.Load(config.ServiceTypeServer)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Port).To(Equal("8080"))
		Expect(cfg.Pipeline.RedisStream).To(Equal("secretary_events"))
		Expect(cfg.LLM.Model).To(Equal("gemini-2.0-flash"))
		Expect(cfg.LLM.BaseURL).To(ContainSubstring("generativelanguage.googleapis.com"))
	})

	It("requires the LLM key for the report job", func() {
		GinkgoT().Setenv("LLM_API_KEY", "")
		_, err := config.Load(config.ServiceTypeReport)
		Expect(err).To(HaveOccurred())
	})

	It("parses the role directories", func() {
		GinkgoT().Setenv("DIRECTORY_ADMINS", "336111:Vincent, 336222:Me")
		GinkgoT().Setenv("DIRECTORY_EMPLOYEES", "336333")
		GinkgoT().Setenv("IGNORED_NUMBERS", "336444, 336555")

		cfg, err := config.Load(config.ServiceTypeServer)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Directory.Admins).To(Equal(map[string]string{
			"336111": "Vincent",
			"336222": "Me",
		}))
		// An entry without a name keeps the id as label
		Expect(cfg.Directory.Employees).To(Equal(map[string]string{"336333": "336333"}))
		Expect(cfg.Directory.Ignored).To(Equal([]string{"336444", "336555"}))
	})

	It("tolerates empty directory values", func() {
		GinkgoT().Setenv("DIRECTORY_ADMINS", "")
		GinkgoT().Setenv("IGNORED_NUMBERS", ",,")

		cfg, err := config.Load(config.ServiceTypeServer)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Directory.Admins).To(BeEmpty())
		Expect(cfg.Directory.Ignored).To(BeEmpty())
	})
})
