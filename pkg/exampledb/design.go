package exampledb

import (
	"context"
	"net/http"

	"github.com/kuitang/couchgen/internal/obs"
	"github.com/kuitang/couchgen/pkg/jsonvalue"
)

const (
	designPrefix = "_design"
	designName   = "hypothesis"
	viewName     = "by_key"
	exampleType  = "example"

	// DesignVersion is bumped whenever the design document changes. Stores
	// overwrite a remote design document carrying any other version.
	DesignVersion = 2
)

// DesignDocID is the id of the design document holding the example view.
const DesignDocID = designPrefix + "/" + designName

const validateDocUpdate = `
function(newdoc, olddoc){
  var assert = function(cond) {
    if(!cond) {
      throw({forbidden: 'bad doc'})
    }
  }

  if(newdoc._deleted === true){
    return
  }

  if(newdoc.type !== 'example'){
    return
  }

  assert(isArray(newdoc.key));
  assert(isArray(newdoc.value));
}`

// View is one map/reduce view of a design document.
type View struct {
	Map    string `json:"map"`
	Reduce string `json:"reduce,omitempty"`
}

// DesignDocument is the stored shape of a design document.
type DesignDocument struct {
	ID                string          `json:"_id"`
	Rev               string          `json:"_rev,omitempty"`
	ValidateDocUpdate string          `json:"validate_doc_update"`
	Views             map[string]View `json:"views"`
	Version           int             `json:"version"`
}

// DesignDoc returns the design document the store installs, without a
// revision.
func DesignDoc() DesignDocument {
	return DesignDocument{
		ID:                DesignDocID,
		ValidateDocUpdate: validateDocUpdate,
		Views: map[string]View{
			viewName: {
				Map:    "function(doc){ emit(doc.key, doc.value) }",
				Reduce: "_count",
			},
		},
		Version: DesignVersion,
	}
}

func (d *DB) ensureSetup(ctx context.Context) error {
	if err := d.ensureDB(ctx); err != nil {
		return err
	}
	return d.ensureDesign(ctx)
}

func (d *DB) ensureDB(ctx context.Context) error {
	if d.dbReady {
		return nil
	}
	err := d.do(ctx, http.MethodGet, d.endpoint(), nil, nil, nil)
	if IsNotFound(err) {
		err = d.do(ctx, http.MethodPut, d.endpoint(), nil, nil, nil)
		if statusOf(err) == http.StatusPreconditionFailed {
			// Created by a concurrent caller.
			err = nil
		}
		if err == nil {
			obs.Pkg(ctx, pkgName).Info("database_created", "url", d.url)
		}
	}
	if err != nil {
		return err
	}
	d.dbReady = true
	return nil
}

func (d *DB) ensureDesign(ctx context.Context) error {
	if d.ddocReady {
		return nil
	}
	var remote struct {
		Rev     string `json:"_rev"`
		Version any    `json:"version"`
	}
	endpoint := d.endpoint(designPrefix, designName)
	err := d.do(ctx, http.MethodGet, endpoint, nil, nil, &remote)
	switch {
	case IsNotFound(err):
		if err := d.do(ctx, http.MethodPut, endpoint, nil, DesignDoc(), nil); err != nil {
			return err
		}
		obs.Pkg(ctx, pkgName).Info("design_doc_created", "version", DesignVersion)
	case err != nil:
		return err
	case !jsonvalue.Equal(remote.Version, DesignVersion):
		ddoc := DesignDoc()
		ddoc.Rev = remote.Rev
		if err := d.do(ctx, http.MethodPut, endpoint, nil, ddoc, nil); err != nil {
			return err
		}
		obs.Pkg(ctx, pkgName).Info("design_doc_updated",
			"from_version", remote.Version, "to_version", DesignVersion)
	}
	d.ddocReady = true
	return nil
}
