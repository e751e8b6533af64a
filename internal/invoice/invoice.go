// Package invoice compiles declarative invoice specs and renders them
// into wire-level invoice parameters per request.
package invoice

import (
	"strings"
	"text/template"

	"hookbot/internal/config"
	"hookbot/internal/format"
	"hookbot/internal/payload"
	"hookbot/internal/transport"
)

// Builder holds an endpoint's compiled invoice. Template fields are
// parsed once; amounts resolve per request.
type Builder struct {
	engine *format.Engine
	spec   *config.InvoiceConfig

	title       *template.Template
	description *template.Template
	invPayload  *template.Template
	currency    *template.Template
	providerTok *template.Template
	startParam  *template.Template
	provData    *template.Template
	photoURL    *template.Template

	priceLabels []*template.Template
	priceAmts   []amountField
	maxTip      *amountField
	tips        []amountField
}

type amountField struct {
	literal  int64
	rendered *template.Template
}

// Compile parses every templated invoice field. Errors here are
// configuration errors and should reject the endpoint.
func Compile(engine *format.Engine, spec *config.InvoiceConfig) (*Builder, error) {
	if spec == nil {
		return nil, nil
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	b := &Builder{engine: engine, spec: spec}
	var err error
	parse := func(field, body string) *template.Template {
		if err != nil || body == "" {
			return nil
		}
		var t *template.Template
		t, err = engine.Parse("invoice."+field, body)
		return t
	}
	amount := func(field string, a config.Amount) amountField {
		if !a.IsTemplate() {
			return amountField{literal: a.Literal()}
		}
		return amountField{rendered: parse(field, a.Template())}
	}

	b.title = parse("title", spec.Title)
	b.description = parse("description", spec.Description)
	b.invPayload = parse("payload", spec.Payload)
	b.currency = parse("currency", spec.Currency)
	b.providerTok = parse("provider_token", spec.ProviderToken)
	b.startParam = parse("start_parameter", spec.StartParameter)
	b.provData = parse("provider_data", spec.ProviderData)
	b.photoURL = parse("photo_url", spec.PhotoURL)

	for _, p := range spec.Prices {
		b.priceLabels = append(b.priceLabels, parse("price.label", p.Label))
		b.priceAmts = append(b.priceAmts, amount("price.amount", p.Amount))
	}
	if spec.MaxTipAmount != nil {
		f := amount("max_tip_amount", *spec.MaxTipAmount)
		b.maxTip = &f
	}
	for _, a := range spec.SuggestedTipAmounts {
		b.tips = append(b.tips, amount("suggested_tip_amount", a))
	}
	if err != nil {
		return nil, config.Errorf("invoice", "%s", err)
	}
	return b, nil
}

// Render resolves templates and amounts against the payload. Amount
// coercion failures and provider/currency mismatches come back as
// validation errors so callers can map them to a request fault.
func (b *Builder) Render(p payload.Payload) (*transport.InvoiceParams, error) {
	if b == nil {
		return nil, nil
	}
	data := map[string]any(p)

	var err error
	render := func(t *template.Template, fallback string) string {
		if err != nil {
			return ""
		}
		if t == nil {
			return fallback
		}
		var s string
		s, err = b.engine.RenderRaw(t, data)
		return s
	}

	params := &transport.InvoiceParams{
		Title:               render(b.title, ""),
		Description:         render(b.description, ""),
		Payload:             render(b.invPayload, ""),
		Currency:            render(b.currency, ""),
		ProviderToken:       render(b.providerTok, ""),
		StartParameter:      render(b.startParam, ""),
		ProviderData:        render(b.provData, ""),
		PhotoURL:            render(b.photoURL, ""),
		PhotoSize:           b.spec.PhotoSize,
		PhotoWidth:          b.spec.PhotoWidth,
		PhotoHeight:         b.spec.PhotoHeight,
		NeedName:            b.spec.NeedName,
		NeedPhoneNumber:     b.spec.NeedPhoneNumber,
		NeedEmail:           b.spec.NeedEmail,
		NeedShippingAddress: b.spec.NeedShippingAddress,
		SendPhoneToProvider: b.spec.SendPhoneToProvider,
		SendEmailToProvider: b.spec.SendEmailToProvider,
		IsFlexible:          b.spec.IsFlexible,
	}
	if err != nil {
		return nil, err
	}

	for i := range b.priceAmts {
		label := render(b.priceLabels[i], "")
		if err != nil {
			return nil, err
		}
		v, aerr := b.amount(b.priceAmts[i], data)
		if aerr != nil {
			return nil, aerr
		}
		params.Prices = append(params.Prices, transport.LabeledPrice{Label: label, Amount: v})
	}
	if b.maxTip != nil {
		v, aerr := b.amount(*b.maxTip, data)
		if aerr != nil {
			return nil, aerr
		}
		params.MaxTipAmount = &v
	}
	for _, tip := range b.tips {
		v, aerr := b.amount(tip, data)
		if aerr != nil {
			return nil, aerr
		}
		params.SuggestedTipAmounts = append(params.SuggestedTipAmounts, v)
	}

	// The pairing rule holds for rendered values too: a template can
	// produce a currency or token the static check never saw.
	star := strings.EqualFold(params.Currency, "XTR")
	if star && params.ProviderToken != "" {
		return nil, transport.Validationf("currency XTR requires an empty provider_token")
	}
	if !star && params.ProviderToken == "" {
		return nil, transport.Validationf("currency %s requires a provider_token", params.Currency)
	}
	return params, nil
}

func (b *Builder) amount(f amountField, data map[string]any) (int64, error) {
	if f.rendered == nil {
		return f.literal, nil
	}
	s, err := b.engine.RenderRaw(f.rendered, data)
	if err != nil {
		return 0, err
	}
	v, err := config.Coerce(s)
	if err != nil {
		return 0, transport.Validationf("%s", err)
	}
	return v, nil
}
