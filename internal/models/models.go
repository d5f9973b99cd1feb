package models

import "time"

// MedicineData is the draft record produced by parsing one product page.
type MedicineData struct {
	Name                 string   `json:"name" bson:"name"`
	Brand                string   `json:"brand,omitempty" bson:"brand,omitempty"`
	GenericName          string   `json:"generic_name,omitempty" bson:"generic_name,omitempty"`
	Manufacturer         string   `json:"manufacturer,omitempty" bson:"manufacturer,omitempty"`
	Price                float64  `json:"price" bson:"price"`
	OriginalPrice        float64  `json:"original_price,omitempty" bson:"original_price,omitempty"`
	DiscountPercent      float64  `json:"discount_percent,omitempty" bson:"discount_percent,omitempty"`
	Description          string   `json:"description,omitempty" bson:"description,omitempty"`
	Dosage               string   `json:"dosage,omitempty" bson:"dosage,omitempty"`
	PackSize             string   `json:"pack_size,omitempty" bson:"pack_size,omitempty"`
	Strength             string   `json:"strength,omitempty" bson:"strength,omitempty"`
	DosageForm           string   `json:"dosage_form,omitempty" bson:"dosage_form,omitempty"`
	RequiresPrescription bool     `json:"requires_prescription" bson:"requires_prescription"`
	Composition          string   `json:"composition,omitempty" bson:"composition,omitempty"`
	SaltComposition      string   `json:"salt_composition,omitempty" bson:"salt_composition,omitempty"`
	CompositionKey       string   `json:"composition_key,omitempty" bson:"composition_key,omitempty"`
	CompositionFamilyKey string   `json:"composition_family_key,omitempty" bson:"composition_family_key,omitempty"`
	Uses                 []string `json:"uses,omitempty" bson:"uses,omitempty"`
	SideEffects          []string `json:"side_effects,omitempty" bson:"side_effects,omitempty"`
	ImageURL             string   `json:"image_url,omitempty" bson:"image_url,omitempty"`
	OriginalImageURL     string   `json:"original_image_url,omitempty" bson:"original_image_url,omitempty"`
	ThumbnailURL         string   `json:"thumbnail_url,omitempty" bson:"thumbnail_url,omitempty"`
	ImageHash            string   `json:"image_hash,omitempty" bson:"image_hash,omitempty"`
	ExternalSourceURL    string   `json:"external_source_url,omitempty" bson:"external_source_url,omitempty"`
	ExternalSourceDomain string   `json:"external_source_domain,omitempty" bson:"external_source_domain,omitempty"`
	SourceAttribution    string   `json:"source_attribution,omitempty" bson:"source_attribution,omitempty"`
	TrustTier            string   `json:"trust_tier,omitempty" bson:"trust_tier,omitempty"`
}

// Medicine is a persisted catalogue row.
type Medicine struct {
	ID             string `json:"id" bson:"_id"`
	MedicineData   `bson:",inline"`
	SourceChecksum string    `json:"source_checksum,omitempty" bson:"source_checksum,omitempty"`
	HTMLAuditURL   string    `json:"html_audit_url,omitempty" bson:"html_audit_url,omitempty"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

type DuplicateMatch struct {
	IsDuplicate bool   `json:"isDuplicate"`
	ExistingID  string `json:"existingId,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type ImportOptions struct {
	DownloadImages bool `json:"downloadImages"`
	RespectRobots  bool `json:"respectRobots"`
	StoreHTMLAudit bool `json:"storeHtmlAudit"`
	ForceCreate    bool `json:"forceCreate"`
}

func DefaultImportOptions() ImportOptions {
	return ImportOptions{DownloadImages: true, RespectRobots: true}
}

type ImportMode string

const (
	ModeCreated ImportMode = "created"
	ModeUpdated ImportMode = "updated"
	ModeFailed  ImportMode = "failed"
)

type ImportResult struct {
	Success      bool          `json:"success"`
	Mode         ImportMode    `json:"mode"`
	MedicineID   string        `json:"medicineId,omitempty"`
	MedicineData *MedicineData `json:"medicineData,omitempty"`
	DedupeReason string        `json:"dedupeReason,omitempty"`
	Strategy     string        `json:"strategy,omitempty"`
	Warnings     []string      `json:"warnings"`
	Error        string        `json:"error,omitempty"`
	AuditURL     string        `json:"auditUrl,omitempty"`
}

type CrawlRequest struct {
	MaxProducts       int      `json:"maxProducts"`
	MaxDiscoveryPages int      `json:"maxDiscoveryPages"`
	Categories        []string `json:"categories"`
	UseFirecrawl      bool     `json:"useFirecrawl"`
	DryRun            bool     `json:"dryRun"`
	IncludeOTC        bool     `json:"includeOTC"`
	IncludePagination bool     `json:"includePagination"`
	ExtraSeedURLs     []string `json:"extraSeedUrls"`
}

func DefaultCrawlRequest() CrawlRequest {
	return CrawlRequest{
		MaxProducts:       50,
		MaxDiscoveryPages: 10,
		UseFirecrawl:      true,
		IncludeOTC:        true,
		IncludePagination: true,
	}
}

type CrawlResult struct {
	Success            bool     `json:"success"`
	DryRun             bool     `json:"dryRun"`
	DiscoveryMethod    string   `json:"discoveryMethod"`
	TotalProductsFound int      `json:"totalProductsFound"`
	ImportedCount      int      `json:"importedCount"`
	SkippedCount       int      `json:"skippedCount"`
	FailedCount        int      `json:"failedCount"`
	Errors             []string `json:"errors"`
	ProductURLs        []string `json:"productUrls"`
}

// EnrichableFields are the columns an enrichment may fill when they are
// empty on the existing row.
var EnrichableFields = []string{
	"composition",
	"salt_composition",
	"composition_key",
	"composition_family_key",
	"description",
}

// StringField returns a pointer to the enrichable field stored under the
// given bson name, or nil for any other name.
func (d *MedicineData) StringField(name string) *string {
	switch name {
	case "composition":
		return &d.Composition
	case "salt_composition":
		return &d.SaltComposition
	case "composition_key":
		return &d.CompositionKey
	case "composition_family_key":
		return &d.CompositionFamilyKey
	case "description":
		return &d.Description
	}
	return nil
}
