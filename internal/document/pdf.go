/**
 * PDF source
 *
 * Pages are read through pdfcpu: the text layer comes from the page content
 * streams, the artwork is the largest embedded image of the page. Rendering
 * vector content is not attempted.
 */

package document

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

type pdfDocument struct {
	ctx *model.Context
}

func openPDF(data []byte) (*pdfDocument, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return &pdfDocument{ctx: pctx}, nil
}

func (d *pdfDocument) Kind() Kind     { return KindPDF }
func (d *pdfDocument) PageCount() int { return d.ctx.PageCount }
func (d *pdfDocument) Close() error   { return nil }

// Text extracts the text layer of a page, one output line per text line
func (d *pdfDocument) Text(ctx context.Context, index int) (string, error) {
	if err := d.page(ctx, index); err != nil {
		return "", err
	}

	r, err := pdfcpu.ExtractPageContent(d.ctx, index+1)
	if err != nil {
		return "", fmt.Errorf("failed to read content of page %d: %w", index+1, err)
	}
	if r == nil {
		return "", nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read content of page %d: %w", index+1, err)
	}
	return textFromContentWithForms(data, d.pageForms(index+1)), nil
}

// pageForms resolves the Form XObjects of a page; nil when it has none
func (d *pdfDocument) pageForms(pageNr int) formResolver {
	pageDict, _, inherited, err := d.ctx.PageDict(pageNr, false)
	if err != nil {
		return nil
	}
	res, err := d.ctx.DereferenceDict(pageDict["Resources"])
	if err != nil {
		return nil
	}
	if res == nil && inherited != nil {
		res = inherited.Resources
	}
	return d.formResolver(res)
}

func (d *pdfDocument) formResolver(res types.Dict) formResolver {
	if res == nil {
		return nil
	}
	xobjects, err := d.ctx.DereferenceDict(res["XObject"])
	if err != nil || xobjects == nil {
		return nil
	}
	return func(name string) ([]byte, formResolver, bool) {
		obj, found := xobjects.Find(name)
		if !found {
			return nil, nil, false
		}
		sd, _, err := d.ctx.DereferenceStreamDict(obj)
		if err != nil || sd == nil {
			return nil, nil, false
		}
		if subtype := sd.Subtype(); subtype == nil || *subtype != "Form" {
			return nil, nil, false
		}
		if err := sd.Decode(); err != nil {
			return nil, nil, false
		}

		// a form without resources uses those of its parent
		inner := res
		if own, err := d.ctx.DereferenceDict(sd.Dict["Resources"]); err == nil && own != nil {
			inner = own
		}
		return sd.Content, d.formResolver(inner), true
	}
}

// Image returns the largest decodable image embedded in a page
func (d *pdfDocument) Image(ctx context.Context, index int) (image.Image, error) {
	if err := d.page(ctx, index); err != nil {
		return nil, err
	}

	imgs, err := pdfcpu.ExtractPageImages(d.ctx, index+1, false)
	if err != nil {
		return nil, fmt.Errorf("failed to extract images of page %d: %w", index+1, err)
	}

	objNrs := make([]int, 0, len(imgs))
	for objNr := range imgs {
		objNrs = append(objNrs, objNr)
	}
	sort.Ints(objNrs)

	var best image.Image
	bestArea := 0
	for _, objNr := range objNrs {
		img, err := decodeImage(imgs[objNr])
		if err != nil {
			continue
		}
		b := img.Bounds()
		if area := b.Dx() * b.Dy(); area > bestArea {
			best, bestArea = img, area
		}
	}
	if best == nil {
		return nil, ErrNoImage
	}
	return best, nil
}

func (d *pdfDocument) page(ctx context.Context, index int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return checkRange(index, d.ctx.PageCount)
}
